// Package loader discovers agent modules on disk and resolves their entry
// points.
//
// A module is a sub-directory of a configured path whose name does not start
// with "." or "_". It must contain a manifest (manifest.yaml, manifest.yml,
// manifest.json or manifest.toml) declaring at least name, description and a
// semantic version; the name must equal the directory name.
//
// Implementations are not discovered by reflection. Each module's entry point
// is looked up in an explicit Registry of factories keyed by the manifest's
// entry (default: its name), and the factory result must satisfy core.Agent.
// A module that fails validation or resolution is reported and skipped; it
// never stops other modules from loading.
package loader
