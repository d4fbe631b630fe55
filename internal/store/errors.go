package store

import "errors"

var (
	ErrProjectNotFound = errors.New("store: project not found")
	ErrProjectExists   = errors.New("store: project already exists")
	ErrSessionNotFound = errors.New("store: crawl session not found")
	ErrPageNotFound    = errors.New("store: page not found")
)
