package main

import (
	"context"
)

var (
	_ CatalogServiceProvider = (*CatalogStore)(nil)
	_ SessionServiceProvider = (*SessionStore)(nil)
)

// CatalogServiceProvider is what the api needs from the catalog.
type CatalogServiceProvider interface {
	FetchAll(ctx context.Context) ([]Book, error)
	Search(ctx context.Context, term string) ([]Book, error)
	Get(ctx context.Context, id string) (Book, error)
	Save(ctx context.Context, book Book) (Book, error)
	Update(ctx context.Context, book Book) (Book, error)
	Remove(ctx context.Context, id string) (string, error)
	State() CatalogState
}

// SessionServiceProvider is what the api needs from the session store.
type SessionServiceProvider interface {
	Register(ctx context.Context, user User) error
	Login(ctx context.Context, username, password string) (User, error)
	Logout(ctx context.Context) error
	CurrentSession(ctx context.Context) (*User, error)
}
