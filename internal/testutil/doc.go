// Package testutil contains helper builders and test doubles used across
// tests to reduce boilerplate when constructing events, agents and
// capabilities and when asserting on delivered events. They are not intended
// for production usage.
package testutil
