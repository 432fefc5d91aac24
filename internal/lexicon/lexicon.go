// Package lexicon loads localized manager strings. Strings are grouped into
// topics, one YAML file per locale and topic:
//
//	locales/<locale>/<topic>.yaml
//
// Lookups fall back to BaseLocale key by key.
package lexicon

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const (
	// BaseLocale is the source locale every topic must exist in.
	BaseLocale = "en-US"
	// DefaultTopic is loaded implicitly with every topic set.
	DefaultTopic = "default"
)

//go:embed locales/*/*.yaml
var embeddedFS embed.FS

// Embedded returns the built-in topic files.
func Embedded() fs.FS {
	return embeddedFS
}

var errNoTopic = errors.New("topic not found")

type topicFile struct {
	Locale  string            `yaml:"locale"`
	Topic   string            `yaml:"topic"`
	Entries map[string]string `yaml:"entries"`
}

// Lexicon resolves locales and serves topic sets. It is safe for concurrent use.
type Lexicon struct {
	fsys    fs.FS
	locales []string
	matcher language.Matcher
	cache   *gocache.Cache
}

// Option configures a Lexicon.
type Option func(*options)

type options struct {
	cacheTTL time.Duration
}

// WithCacheTTL sets how long parsed topic files are kept. Zero or less keeps
// them for the life of the process.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *options) { o.cacheTTL = ttl }
}

// New discovers the locales present in fsys. BaseLocale must be one of them.
func New(fsys fs.FS, opts ...Option) (*Lexicon, error) {
	o := options{cacheTTL: 10 * time.Minute}
	for _, opt := range opts {
		opt(&o)
	}

	dirs, err := fs.Glob(fsys, "locales/*")
	if err != nil {
		return nil, fmt.Errorf("glob locales: %w", err)
	}
	locales := make([]string, 0, len(dirs))
	hasBase := false
	for _, dir := range dirs {
		info, err := fs.Stat(fsys, dir)
		if err != nil || !info.IsDir() {
			continue
		}
		name := path.Base(dir)
		if _, err := language.Parse(name); err != nil {
			return nil, fmt.Errorf("locale directory %q: %w", name, err)
		}
		if name == BaseLocale {
			hasBase = true
			continue
		}
		locales = append(locales, name)
	}
	if !hasBase {
		return nil, fmt.Errorf("base locale %s is not defined", BaseLocale)
	}
	sort.Strings(locales)
	// The base locale goes first so the matcher falls back to it.
	locales = append([]string{BaseLocale}, locales...)

	tags := make([]language.Tag, len(locales))
	for i, l := range locales {
		tags[i] = language.MustParse(l)
	}

	ttl := o.cacheTTL
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &Lexicon{
		fsys:    fsys,
		locales: locales,
		matcher: language.NewMatcher(tags),
		cache:   gocache.New(ttl, 2*ttl),
	}, nil
}

// Locales returns the available locales, base locale first.
func (l *Lexicon) Locales() []string {
	return append([]string(nil), l.locales...)
}

// Resolve picks the best available locale for the given preferences. Each
// preference may be a single tag ("de", "de-AT") or an Accept-Language value.
// Unmatched preferences resolve to BaseLocale.
func (l *Lexicon) Resolve(preferred ...string) string {
	var tags []language.Tag
	for _, p := range preferred {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parsed, _, err := language.ParseAcceptLanguage(p)
		if err != nil {
			continue
		}
		tags = append(tags, parsed...)
	}
	if len(tags) == 0 {
		return BaseLocale
	}
	_, index, confidence := l.matcher.Match(tags...)
	if confidence == language.No {
		return BaseLocale
	}
	return l.locales[index]
}

// Load resolves locale and returns the default topic plus the requested
// topics. Later topics override keys of earlier ones.
func (l *Lexicon) Load(locale string, topics ...string) (*Topics, error) {
	resolved := l.Resolve(locale)
	all := append([]string{DefaultTopic}, topics...)

	entries := make(map[string]string)
	for _, topic := range all {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		base, err := l.readTopic(BaseLocale, topic)
		if err != nil {
			return nil, fmt.Errorf("load topic %q: %w", topic, err)
		}
		for k, v := range base {
			entries[k] = v
		}
		if resolved == BaseLocale {
			continue
		}
		localized, err := l.readTopic(resolved, topic)
		if errors.Is(err, errNoTopic) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load topic %q for %s: %w", topic, resolved, err)
		}
		for k, v := range localized {
			entries[k] = v
		}
	}
	return &Topics{locale: resolved, entries: entries}, nil
}

// Flush drops every cached topic file.
func (l *Lexicon) Flush() {
	l.cache.Flush()
}

func (l *Lexicon) readTopic(locale, topic string) (map[string]string, error) {
	key := locale + "/" + topic
	if cached, ok := l.cache.Get(key); ok {
		return cached.(map[string]string), nil
	}

	file := path.Join("locales", locale, topic+".yaml")
	data, err := fs.ReadFile(l.fsys, file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", file, errNoTopic)
		}
		return nil, fmt.Errorf("read %s: %w", file, err)
	}

	var parsed topicFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}
	if parsed.Locale != locale {
		return nil, fmt.Errorf("%s: locale %q must match path locale %q", file, parsed.Locale, locale)
	}
	if parsed.Topic != topic {
		return nil, fmt.Errorf("%s: topic %q must match file name %q", file, parsed.Topic, topic)
	}
	entries := make(map[string]string, len(parsed.Entries))
	for k, v := range parsed.Entries {
		k = strings.TrimSpace(k)
		if k == "" {
			return nil, fmt.Errorf("%s: entry key cannot be blank", file)
		}
		entries[k] = v
	}

	l.cache.SetDefault(key, entries)
	return entries, nil
}

// Topics is a loaded set of topic entries for one locale.
type Topics struct {
	locale  string
	entries map[string]string
}

// Locale returns the locale the set was resolved to.
func (t *Topics) Locale() string {
	return t.locale
}

// Get returns the entry for key with [[+name]] placeholders replaced from
// params. A missing key yields the key itself.
func (t *Topics) Get(key string, params map[string]string) string {
	if t == nil {
		return key
	}
	msg, ok := t.entries[key]
	if !ok {
		return key
	}
	if len(params) == 0 {
		return msg
	}
	pairs := make([]string, 0, len(params)*2)
	for name, value := range params {
		pairs = append(pairs, "[[+"+name+"]]", value)
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}
