package model

import "time"

// ProjectStatus is the project-level lifecycle state the BatchOrchestrator
// drives a project through across one crawl_all run: idle between runs,
// CRAWLING while its CrawlEngine is active, READY after a clean finish, or
// ERROR if the run failed.
type ProjectStatus string

const (
	ProjectIdle     ProjectStatus = "IDLE"
	ProjectCrawling ProjectStatus = "CRAWLING"
	ProjectReady    ProjectStatus = "READY"
	ProjectError    ProjectStatus = "ERROR"
)

// Project is a documentation crawl target.
type Project struct {
	id              string
	name            string
	seedURL         string
	depth           int
	embeddingModel  string
	status          ProjectStatus
	lastError       string
	lastCrawledAt   *time.Time
	totalPages      int
	totalBytes      int64
}

func NewProject(id, name, seedURL string, depth int, embeddingModel string) Project {
	return Project{
		id:             id,
		name:           name,
		seedURL:        seedURL,
		depth:          depth,
		embeddingModel: embeddingModel,
		status:         ProjectIdle,
	}
}

func (p Project) ID() string             { return p.id }
func (p Project) Name() string           { return p.name }
func (p Project) SeedURL() string        { return p.seedURL }
func (p Project) Depth() int             { return p.depth }
func (p Project) EmbeddingModel() string { return p.embeddingModel }
func (p Project) Status() ProjectStatus  { return p.status }
func (p Project) LastError() string      { return p.lastError }
func (p Project) LastCrawledAt() *time.Time {
	if p.lastCrawledAt == nil {
		return nil
	}
	t := *p.lastCrawledAt
	return &t
}
func (p Project) TotalPages() int   { return p.totalPages }
func (p Project) TotalBytes() int64 { return p.totalBytes }

// UpdateStatistics records the outcome of a completed crawl against this project.
func (p *Project) UpdateStatistics(crawledAt time.Time, totalPages int, totalBytes int64) {
	p.lastCrawledAt = &crawledAt
	p.totalPages = totalPages
	p.totalBytes = totalBytes
}

// MarkCrawling transitions the project into CRAWLING, clearing any prior error.
func (p *Project) MarkCrawling() {
	p.status = ProjectCrawling
	p.lastError = ""
}

// MarkReady transitions the project into READY after a successful batch run.
func (p *Project) MarkReady() {
	p.status = ProjectReady
	p.lastError = ""
}

// MarkError transitions the project into ERROR, recording msg for later inspection.
func (p *Project) MarkError(msg string) {
	p.status = ProjectError
	p.lastError = msg
}
