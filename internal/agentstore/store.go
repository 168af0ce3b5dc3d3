// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agentstore

import (
	"context"
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	agentSuffix = ".agent.md"
	skillSuffix = ".skill.md"

	debounceDelay = 100 * time.Millisecond
)

//go:embed _default.auto.agent.md
var defaultAutoAgent []byte

// Store holds the agent and skill registries loaded from a directory tree,
// kept up to date by a file-system watcher. The zero value is not usable;
// construct one with New.
type Store struct {
	agentDir     string
	skillDir     string
	defaultModel string

	mu     sync.RWMutex
	agents map[string]AgentDefinition
	skills map[string]Skill
}

// New creates a Store rooted at agentDir (for *.agent.md files) and
// skillDir (for *.skill.md files); the two may be the same directory.
// defaultModel fills an agent's model when its front matter omits one.
func New(agentDir, skillDir, defaultModel string) *Store {
	return &Store{
		agentDir:     agentDir,
		skillDir:     skillDir,
		defaultModel: defaultModel,
		agents:       make(map[string]AgentDefinition),
		skills:       make(map[string]Skill),
	}
}

// LoadAndWatch ensures the default "auto" agent exists, loads every
// *.agent.md and *.skill.md file under the store's directories, then
// starts a background watcher that keeps the registries in sync until ctx
// is cancelled. It returns once the initial load completes.
func (s *Store) LoadAndWatch(ctx context.Context) error {
	if err := s.ensureDefaultAgent(); err != nil {
		return err
	}
	if err := s.loadAll(); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dirs := map[string]struct{}{}
	if err := addRecursive(watcher, s.agentDir); err != nil {
		watcher.Close()
		return err
	}
	dirs[s.agentDir] = struct{}{}
	if _, ok := dirs[s.skillDir]; !ok {
		if err := addRecursive(watcher, s.skillDir); err != nil {
			watcher.Close()
			return err
		}
	}
	go s.watchLoop(ctx, watcher)
	return nil
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

func (s *Store) loadAll() error {
	if err := walkSuffix(s.agentDir, agentSuffix, func(path string) {
		s.loadAgentFile(path)
	}); err != nil {
		return err
	}
	return walkSuffix(s.skillDir, skillSuffix, func(path string) {
		s.loadSkillFile(path)
	})
}

func walkSuffix(root, suffix string, fn func(path string)) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, suffix) {
			fn(path)
		}
		return nil
	})
}

func (s *Store) loadAgentFile(path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("cannot read agent file", "path", path, "error", err)
		return
	}
	name := deriveName(relPath(path, s.agentDir), agentSuffix)
	def, err := parseAgentFile(string(content), path, s.defaultModel)
	if err != nil {
		slog.Warn("cannot load agent file", "path", path, "error", err)
		return
	}
	def.Name = name
	s.mu.Lock()
	s.agents[name] = def
	s.mu.Unlock()
}

func (s *Store) unloadAgentFile(path string) {
	name := deriveName(relPath(path, s.agentDir), agentSuffix)
	s.mu.Lock()
	delete(s.agents, name)
	s.mu.Unlock()
}

func (s *Store) loadSkillFile(path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("cannot read skill file", "path", path, "error", err)
		return
	}
	name := deriveName(relPath(path, s.skillDir), skillSuffix)
	skill, err := parseSkillFile(string(content), path)
	if err != nil {
		slog.Warn("cannot load skill file", "path", path, "error", err)
		return
	}
	skill.Name = name
	s.mu.Lock()
	s.skills[name] = skill
	s.mu.Unlock()
}

func (s *Store) unloadSkillFile(path string) {
	name := deriveName(relPath(path, s.skillDir), skillSuffix)
	s.mu.Lock()
	delete(s.skills, name)
	s.mu.Unlock()
}

func relPath(path, root string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.Base(path)
	}
	return rel
}

// Agents returns a snapshot of every loaded agent, keyed by name.
func (s *Store) Agents() map[string]AgentDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]AgentDefinition, len(s.agents))
	for k, v := range s.agents {
		out[k] = v
	}
	return out
}

// Agent retrieves one agent by name.
func (s *Store) Agent(name string) (AgentDefinition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.agents[name]
	return def, ok
}

// Skills returns a snapshot of every loaded skill, keyed by name.
func (s *Store) Skills() map[string]Skill {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Skill, len(s.skills))
	for k, v := range s.skills {
		out[k] = v
	}
	return out
}

// Skill retrieves one skill by name.
func (s *Store) Skill(name string) (Skill, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	skill, ok := s.skills[name]
	return skill, ok
}

func (s *Store) ensureDefaultAgent() error {
	dst := filepath.Join(s.agentDir, "auto"+agentSuffix)
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	if err := os.MkdirAll(s.agentDir, 0755); err != nil {
		return err
	}
	if err := os.WriteFile(dst, defaultAutoAgent, 0644); err != nil {
		return err
	}
	slog.Info("copied default agent", "path", dst)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	var debounce *time.Timer
	pending := make(map[string]fsnotify.Op)
	var mu sync.Mutex

	flush := func() {
		mu.Lock()
		events := pending
		pending = make(map[string]fsnotify.Op)
		mu.Unlock()
		for path, op := range events {
			s.handleEvent(path, op)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, agentSuffix) && !strings.HasSuffix(event.Name, skillSuffix) {
				continue
			}
			mu.Lock()
			pending[event.Name] |= event.Op
			mu.Unlock()
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, flush)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("agentstore watcher error", "error", err)
		}
	}
}

func (s *Store) handleEvent(path string, op fsnotify.Op) {
	isAgent := strings.HasSuffix(path, agentSuffix)
	switch {
	case op&fsnotify.Remove == fsnotify.Remove:
		if isAgent {
			s.unloadAgentFile(path)
			slog.Info("agent removed", "path", path)
		} else {
			s.unloadSkillFile(path)
			slog.Info("skill removed", "path", path)
		}
	case op&fsnotify.Write == fsnotify.Write, op&fsnotify.Create == fsnotify.Create:
		if isAgent {
			s.loadAgentFile(path)
			slog.Info("agent updated", "path", path)
		} else {
			s.loadSkillFile(path)
			slog.Info("skill updated", "path", path)
		}
	}
}
