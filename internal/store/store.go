// Package store is the in-memory system of record for Projects, CrawlSessions
// and Pages. Every method call is its own transaction: callers read the
// returned value, mutate it via internal/model's state-transition methods,
// then write it back with Update*.
package store

import (
	"sync"
	"time"

	"github.com/behemotion/docbro/internal/model"
	"github.com/behemotion/docbro/pkg/idgen"
)

const defaultSessionTimeout = 30 * time.Second

// SessionStore holds Projects, CrawlSessions and Pages for the lifetime of
// the process. It has no persistence backend: restart loses state.
type SessionStore struct {
	mu sync.RWMutex

	projects       map[string]model.Project
	projectsByName map[string]string

	sessions map[string]model.CrawlSession

	pages map[string]model.Page
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		projects:       make(map[string]model.Project),
		projectsByName: make(map[string]string),
		sessions:       make(map[string]model.CrawlSession),
		pages:          make(map[string]model.Page),
	}
}

// CreateProject registers a new documentation crawl target. The name must be
// unique across the store.
func (s *SessionStore) CreateProject(name, seedURL string, depth int, embeddingModel string) (model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.projectsByName[name]; exists {
		return model.Project{}, ErrProjectExists
	}

	p := model.NewProject(idgen.New(), name, seedURL, depth, embeddingModel)
	s.projects[p.ID()] = p
	s.projectsByName[name] = p.ID()
	return p, nil
}

func (s *SessionStore) GetProject(id string) (model.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	return p, ok
}

func (s *SessionStore) GetProjectByName(name string) (model.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.projectsByName[name]
	if !ok {
		return model.Project{}, false
	}
	p, ok := s.projects[id]
	return p, ok
}

// ListProjects returns every known Project in no particular order.
func (s *SessionStore) ListProjects() []model.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	return out
}

// UpdateProjectStatistics records the outcome of a completed crawl against
// project id.
func (s *SessionStore) UpdateProjectStatistics(id string, crawledAt time.Time, totalPages int, totalBytes int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return ErrProjectNotFound
	}
	p.UpdateStatistics(crawledAt, totalPages, totalBytes)
	s.projects[id] = p
	return nil
}

// UpdateProjectStatus transitions project id to status, recording errMsg
// when status is model.ProjectError. Callers pass an empty errMsg for
// CRAWLING/READY transitions.
func (s *SessionStore) UpdateProjectStatus(id string, status model.ProjectStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return ErrProjectNotFound
	}
	switch status {
	case model.ProjectCrawling:
		p.MarkCrawling()
	case model.ProjectReady:
		p.MarkReady()
	case model.ProjectError:
		p.MarkError(errMsg)
	}
	s.projects[id] = p
	return nil
}

// CreateCrawlSession starts a new session in CREATED status against
// projectID. rateLimit <= 0 leaves the zero value; callers resolve a default
// upstream (internal/config). The session timeout always uses the store's
// default since spec §4.5 does not expose it as a create_crawl_session
// argument.
func (s *SessionStore) CreateCrawlSession(projectID string, depth int, userAgent string, rateLimit float64) (model.CrawlSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[projectID]; !ok {
		return model.CrawlSession{}, ErrProjectNotFound
	}

	now := time.Now().UTC()
	sess := model.NewCrawlSession(idgen.New(), projectID, depth, userAgent, rateLimit, defaultSessionTimeout, 0, now)
	s.sessions[sess.ID()] = sess
	return sess, nil
}

func (s *SessionStore) UpdateCrawlSession(session model.CrawlSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID()]; !ok {
		return ErrSessionNotFound
	}
	s.sessions[session.ID()] = session
	return nil
}

func (s *SessionStore) GetCrawlSession(id string) (model.CrawlSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// CreatePage registers a newly discovered URL within sessionID. parentURL is
// empty for a seed URL.
func (s *SessionStore) CreatePage(sessionID, projectID, targetURL string, depth int, parentURL string) (model.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return model.Page{}, ErrSessionNotFound
	}

	page := model.NewPage(idgen.New(), sessionID, projectID, targetURL, depth, parentURL, time.Now().UTC())
	s.pages[page.ID()] = page
	return page, nil
}

func (s *SessionStore) UpdatePage(page model.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pages[page.ID()]; !ok {
		return ErrPageNotFound
	}
	s.pages[page.ID()] = page
	return nil
}

func (s *SessionStore) GetPage(id string) (model.Page, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pages[id]
	return p, ok
}

// ListPagesBySession returns every Page belonging to sessionID, in no
// particular order.
func (s *SessionStore) ListPagesBySession(sessionID string) []model.Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Page, 0)
	for _, p := range s.pages {
		if p.SessionID() == sessionID {
			out = append(out, p)
		}
	}
	return out
}
