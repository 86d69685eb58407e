package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Factory builds the repository set once per database handle.
type Factory struct {
	db    *gorm.DB
	once  sync.Once
	repos *Repositories
}

func NewFactory(db *gorm.DB) *Factory {
	return &Factory{db: db}
}

func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// DB exposes the handle the repositories were built on, for services with their own repository (billing).
func (f *Factory) DB() *gorm.DB {
	return f.db
}

var (
	globalMu      sync.Mutex
	globalFactory *Factory
)

// InitializeFactory installs the process wide factory. A call with a
// different handle replaces it.
func InitializeFactory(db *gorm.DB) *Factory {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalFactory == nil || globalFactory.db != db {
		globalFactory = NewFactory(db)
	}
	return globalFactory
}
