// Package profile loads the static profile configuration rendered beside the
// contact form: currently the list of social links.
package profile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	apperrors "github.com/conneroisu/contactform/internal/errors"
	"github.com/conneroisu/contactform/internal/logging"
	"github.com/conneroisu/contactform/internal/watcher"
)

var validate = validator.New()

// SocialLink is one entry of the social block.
type SocialLink struct {
	URL      string `yaml:"url" validate:"required,http_url"`
	IconName string `yaml:"icon" validate:"required,max=64"`
	Text     string `yaml:"text" validate:"required,max=128"`
}

// Profile is the decoded profile file.
type Profile struct {
	Social []SocialLink `yaml:"social" validate:"dive"`
}

// Parse decodes and validates a profile document. An empty document is an
// empty profile.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, apperrors.NewConfigError(apperrors.ErrCodeProfileInvalid, "decode profile", err)
	}
	if err := validate.Struct(p); err != nil {
		return nil, apperrors.NewConfigError(apperrors.ErrCodeProfileInvalid, "validate profile", err)
	}
	return &p, nil
}

// LoadFile reads and parses the profile at path.
func LoadFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", path, err)
	}
	return Parse(data)
}

// Store holds the current profile and swaps it on reload. Readers never see a
// partially loaded profile.
type Store struct {
	path    string
	logger  logging.Logger
	current atomic.Pointer[Profile]
	onLoad  atomic.Pointer[func(*Profile)]
}

// NewStore loads path. An empty path yields a store with an empty profile.
func NewStore(path string, logger logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Store{path: path, logger: logger.WithComponent("profile")}
	if path == "" {
		s.current.Store(&Profile{})
		return s, nil
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Static returns a store fixed to p.
func Static(p *Profile) *Store {
	s := &Store{logger: logging.Discard()}
	if p == nil {
		p = &Profile{}
	}
	s.current.Store(p)
	return s
}

// Path is the file backing the store, empty for static stores.
func (s *Store) Path() string {
	return s.path
}

// Current returns the active profile.
func (s *Store) Current() *Profile {
	return s.current.Load()
}

// Social returns a copy of the active social links.
func (s *Store) Social() []SocialLink {
	p := s.Current()
	out := make([]SocialLink, len(p.Social))
	copy(out, p.Social)
	return out
}

// OnLoad registers fn to run after every successful reload.
func (s *Store) OnLoad(fn func(*Profile)) {
	s.onLoad.Store(&fn)
}

// Reload re-reads the file. On error the previous profile stays active.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	p, err := LoadFile(s.path)
	if err != nil {
		return err
	}
	s.current.Store(p)
	if fn := s.onLoad.Load(); fn != nil && *fn != nil {
		(*fn)(p)
	}
	return nil
}

// Watch reloads the store whenever fw reports a change to its file.
func (s *Store) Watch(ctx context.Context, fw *watcher.FileWatcher) error {
	if s.path == "" {
		return nil
	}
	fw.AddHandler(func(events []watcher.ChangeEvent) error {
		for _, e := range events {
			if e.Type == watcher.EventTypeDeleted {
				s.logger.Warn(ctx, nil, "profile file removed, keeping last good profile", "path", e.Path)
				return nil
			}
		}
		if err := s.Reload(); err != nil {
			return fmt.Errorf("reload profile: %w", err)
		}
		s.logger.Info(ctx, "profile reloaded", "social_links", len(s.Current().Social))
		return nil
	})
	return fw.WatchFile(s.path)
}
