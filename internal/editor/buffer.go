package editor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// TextBuffer is the editing surface the workspace renders from.
type TextBuffer interface {
	CurrentText() string
	ReplaceAll(text string) error
	OnChange(fn func(text string)) Subscription
}

// Subscription cancels an OnChange registration.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	once sync.Once
	fn   func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.fn)
}

// listeners is the subscriber registry shared by buffer implementations.
type listeners struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(string)
}

func (l *listeners) add(fn func(string)) Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(string))
	}
	id := l.nextID
	l.nextID++
	l.fns[id] = fn
	return &subscription{fn: func() {
		l.mu.Lock()
		delete(l.fns, id)
		l.mu.Unlock()
	}}
}

func (l *listeners) notify(text string) {
	l.mu.Lock()
	fns := make([]func(string), 0, len(l.fns))
	for i := 0; i < l.nextID; i++ {
		if fn, ok := l.fns[i]; ok {
			fns = append(fns, fn)
		}
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn(text)
	}
}

// MemoryBuffer holds the document in memory. Browser edits arrive through
// ReplaceAll.
type MemoryBuffer struct {
	mu   sync.RWMutex
	text string
	subs listeners
}

// NewMemoryBuffer returns a buffer holding text.
func NewMemoryBuffer(text string) *MemoryBuffer {
	return &MemoryBuffer{text: text}
}

func (b *MemoryBuffer) CurrentText() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text
}

// ReplaceAll swaps the whole document and notifies subscribers when it changed.
func (b *MemoryBuffer) ReplaceAll(text string) error {
	b.mu.Lock()
	changed := b.text != text
	b.text = text
	b.mu.Unlock()
	if changed {
		b.subs.notify(text)
	}
	return nil
}

func (b *MemoryBuffer) OnChange(fn func(string)) Subscription {
	return b.subs.add(fn)
}

// FileBuffer is a TextBuffer backed by a file on disk. Edits made by other
// programs are picked up through fsnotify; the buffer's own writes do not
// echo back to subscribers.
type FileBuffer struct {
	Path string

	mu      sync.RWMutex
	text    string
	subs    listeners
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// OpenFileBuffer reads path (a missing file starts empty) and starts watching
// its directory.
func OpenFileBuffer(path string) (*FileBuffer, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", abs, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// editors often replace files by rename, so watch the directory
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	b := &FileBuffer{
		Path:    abs,
		text:    string(data),
		watcher: fw,
		done:    make(chan struct{}),
	}
	go b.loop()
	return b, nil
}

func (b *FileBuffer) CurrentText() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text
}

// ReplaceAll writes text to disk and notifies subscribers.
func (b *FileBuffer) ReplaceAll(text string) error {
	b.mu.Lock()
	if b.text == text {
		b.mu.Unlock()
		return nil
	}
	if err := os.WriteFile(b.Path, []byte(text), 0644); err != nil {
		b.mu.Unlock()
		return fmt.Errorf("failed to write %s: %w", b.Path, err)
	}
	b.text = text
	b.mu.Unlock()
	b.subs.notify(text)
	return nil
}

func (b *FileBuffer) OnChange(fn func(string)) Subscription {
	return b.subs.add(fn)
}

// Close stops watching the file.
func (b *FileBuffer) Close() error {
	err := b.watcher.Close()
	<-b.done
	return err
}

func (b *FileBuffer) loop() {
	defer close(b.done)

	const settle = 50 * time.Millisecond
	var pending bool
	var last time.Time
	ticker := time.NewTicker(settle)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != b.Path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending = true
				last = time.Now()
			}
		case <-ticker.C:
			if pending && time.Since(last) >= settle {
				pending = false
				b.reload()
			}
		case _, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// reload re-reads the file. Content equal to what the buffer already holds
// is the buffer's own write and is dropped.
func (b *FileBuffer) reload() {
	data, err := os.ReadFile(b.Path)
	if err != nil {
		return
	}
	text := string(data)
	b.mu.Lock()
	if text == b.text {
		b.mu.Unlock()
		return
	}
	b.text = text
	b.mu.Unlock()
	b.subs.notify(text)
}
