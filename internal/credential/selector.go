package credential

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Selector is the external key selection facility.
type Selector interface {
	HasSelectedKey(ctx context.Context) (bool, error)
	// OpenSelectKey starts the selection flow. It may return before the
	// user has finished choosing.
	OpenSelectKey(ctx context.Context) error
	// SelectedKey returns the chosen key, or "" if none.
	SelectedKey(ctx context.Context) (string, error)
}

// StoreSelector keeps the selected key in a KeyStore. Selection happens
// out of band through Select, so OpenSelectKey only records the request.
type StoreSelector struct {
	store  KeyStore
	cipher *Cipher

	mu        sync.Mutex
	requested int
}

func NewStoreSelector(store KeyStore, cipher *Cipher) *StoreSelector {
	return &StoreSelector{store: store, cipher: cipher}
}

func (s *StoreSelector) HasSelectedKey(ctx context.Context) (bool, error) {
	_, err := s.store.Load(ctx)
	if errors.Is(err, ErrNoKey) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load key: %w", err)
	}
	return true, nil
}

func (s *StoreSelector) OpenSelectKey(context.Context) error {
	s.mu.Lock()
	s.requested++
	s.mu.Unlock()
	return nil
}

// Requests counts OpenSelectKey calls since the last Select.
func (s *StoreSelector) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requested
}

func (s *StoreSelector) SelectedKey(ctx context.Context) (string, error) {
	sealed, err := s.store.Load(ctx)
	if errors.Is(err, ErrNoKey) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load key: %w", err)
	}
	key, err := s.cipher.Decrypt(sealed)
	if err != nil {
		return "", err
	}
	return key, nil
}

// ErrEmptyKey rejects a blank selection.
var ErrEmptyKey = errors.New("api key is required")

// Select stores key as the selected credential.
func (s *StoreSelector) Select(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	sealed, err := s.cipher.Encrypt(key)
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, sealed); err != nil {
		return fmt.Errorf("save key: %w", err)
	}
	s.mu.Lock()
	s.requested = 0
	s.mu.Unlock()
	return nil
}

func (s *StoreSelector) Clear(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// TerminalSelector prompts for a key on the controlling terminal.
type TerminalSelector struct {
	in  *os.File
	out io.Writer

	mu  sync.Mutex
	key string
}

func NewTerminalSelector(in *os.File, out io.Writer) *TerminalSelector {
	return &TerminalSelector{in: in, out: out}
}

func (s *TerminalSelector) HasSelectedKey(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key != "", nil
}

func (s *TerminalSelector) OpenSelectKey(context.Context) error {
	fmt.Fprint(s.out, "API key for video generation (empty to use the configured key): ")
	var (
		line string
		err  error
	)
	fd := int(s.in.Fd())
	if term.IsTerminal(fd) {
		var raw []byte
		raw, err = term.ReadPassword(fd)
		fmt.Fprintln(s.out)
		line = string(raw)
	} else {
		line, err = bufio.NewReader(s.in).ReadString('\n')
		if errors.Is(err, io.EOF) {
			err = nil
		}
	}
	if err != nil {
		return fmt.Errorf("read key: %w", err)
	}
	s.mu.Lock()
	s.key = strings.TrimSpace(line)
	s.mu.Unlock()
	return nil
}

func (s *TerminalSelector) SelectedKey(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key, nil
}
