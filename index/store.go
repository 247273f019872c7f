package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/logging"
)

const catalogFile = "catalog.yaml"

var (
	// ErrNotFound is returned for unknown index names.
	ErrNotFound = errors.New("index not found")
	// ErrExists is returned when creating an index that already exists.
	ErrExists = errors.New("index already exists")

	nameRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// Options configures a Store.
type Options struct {
	// PersistPath is the directory the database is stored in. Empty keeps
	// everything in memory.
	PersistPath string
	// Embedding computes document and query vectors. Defaults to HashEmbedding.
	Embedding chromem.EmbeddingFunc
	// Concurrency bounds parallel embedding in AddTexts.
	Concurrency int
	Logger      logging.Logger
}

// Store manages named indexes in one chromem database.
type Store struct {
	db   *chromem.DB
	opts Options

	mu      sync.Mutex
	catalog map[string]string // name -> description
}

// NewStore opens (or creates) a store.
func NewStore(optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Concurrency: 4}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Embedding == nil {
		opts.Embedding = HashEmbedding(DefaultHashDimensions)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	opts.Logger = core.EnsureLogger(opts.Logger)

	s := &Store{opts: opts, catalog: map[string]string{}}
	if opts.PersistPath == "" {
		s.db = chromem.NewDB()
		return s, nil
	}

	if err := os.MkdirAll(opts.PersistPath, 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	db, err := chromem.NewPersistentDB(filepath.Join(opts.PersistPath, "db"), false)
	if err != nil {
		return nil, fmt.Errorf("open persistent index db: %w", err)
	}
	s.db = db
	if err := s.loadCatalog(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadCatalog() error {
	data, err := os.ReadFile(filepath.Join(s.opts.PersistPath, catalogFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read index catalog: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.catalog); err != nil {
		return fmt.Errorf("decode index catalog: %w", err)
	}
	if s.catalog == nil {
		s.catalog = map[string]string{}
	}
	return nil
}

// saveCatalog must be called with s.mu held.
func (s *Store) saveCatalog() error {
	if s.opts.PersistPath == "" {
		return nil
	}
	data, err := yaml.Marshal(s.catalog)
	if err != nil {
		return fmt.Errorf("encode index catalog: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.opts.PersistPath, catalogFile), data, 0o644); err != nil {
		return fmt.Errorf("write index catalog: %w", err)
	}
	return nil
}

// Create adds a new empty index.
func (s *Store) Create(name, description string) (*Index, error) {
	if !nameRE.MatchString(name) {
		return nil, fmt.Errorf("invalid index name %q: use letters, digits, '-' and '_'", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.catalog[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrExists, name)
	}
	col, err := s.db.GetOrCreateCollection(name, map[string]string{"description": description}, s.opts.Embedding)
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", name, err)
	}
	s.catalog[name] = description
	if err := s.saveCatalog(); err != nil {
		return nil, err
	}
	s.opts.Logger.Info("index.created", "index", name)
	return s.wrap(name, description, col), nil
}

// Get returns an existing index.
func (s *Store) Get(name string) (*Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	description, ok := s.catalog[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	col, err := s.db.GetOrCreateCollection(name, map[string]string{"description": description}, s.opts.Embedding)
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", name, err)
	}
	return s.wrap(name, description, col), nil
}

// GetOrCreate returns the named index, creating it when missing.
func (s *Store) GetOrCreate(name, description string) (*Index, error) {
	idx, err := s.Get(name)
	if errors.Is(err, ErrNotFound) {
		return s.Create(name, description)
	}
	return idx, err
}

// Names returns the index names, sorted.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.catalog))
	for n := range s.catalog {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Delete removes an index and its documents.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.catalog[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err := s.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("delete collection %s: %w", name, err)
	}
	delete(s.catalog, name)
	s.opts.Logger.Info("index.deleted", "index", name)
	return s.saveCatalog()
}

func (s *Store) wrap(name, description string, col *chromem.Collection) *Index {
	return &Index{name: name, description: description, col: col, concurrency: s.opts.Concurrency, logger: s.opts.Logger}
}

// Index is a named collection of text documents.
type Index struct {
	name        string
	description string
	col         *chromem.Collection
	concurrency int
	logger      logging.Logger
}

// Name returns the index name.
func (i *Index) Name() string { return i.name }

// Description returns what the index contains.
func (i *Index) Description() string { return i.description }

// Count returns the number of documents.
func (i *Index) Count() int { return i.col.Count() }

// Match is one query result.
type Match struct {
	ID         string
	Content    string
	Metadata   map[string]string
	Similarity float32
}

// AddTexts embeds and stores texts concurrently. Document ids are derived
// from the content so adding the same text twice keeps one document.
func (i *Index) AddTexts(ctx context.Context, texts []string, metadata map[string]string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)
	for _, text := range texts {
		text := strings.TrimSpace(text)
		if text == "" {
			continue
		}
		g.Go(func() error {
			md := make(map[string]string, len(metadata))
			for k, v := range metadata {
				md[k] = v
			}
			return i.col.AddDocument(gctx, chromem.Document{ID: documentID(text), Content: text, Metadata: md})
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("add texts to %s: %w", i.name, err)
	}
	i.logger.Debug("index.texts.added", "index", i.name, "count", len(texts))
	return nil
}

// Query returns up to n documents most similar to text.
func (i *Index) Query(ctx context.Context, text string, n int) ([]Match, error) {
	if n <= 0 {
		n = 4
	}
	if c := i.col.Count(); n > c {
		n = c
	}
	if n == 0 {
		return nil, nil
	}
	res, err := i.col.Query(ctx, text, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", i.name, err)
	}
	matches := make([]Match, len(res))
	for j, r := range res {
		matches[j] = Match{ID: r.ID, Content: r.Content, Metadata: r.Metadata, Similarity: r.Similarity}
	}
	return matches, nil
}

func documentID(text string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(text)).String()
}
