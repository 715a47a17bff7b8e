package main

import (
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// BookRequest is the payload of book creation and update. Authors can be
// sent either as a list or as a comma separated `authorNames` string.
type BookRequest struct {
	Book
	AuthorNames string `json:"authorNames,omitempty"`
}

// ToBook merges the author names into the book when no list was sent.
func (br *BookRequest) ToBook() Book {
	book := br.Book
	if len(book.Authors) == 0 && len(br.AuthorNames) != 0 {
		book.Authors = ParseAuthors(br.AuthorNames)
	}
	return book
}

// GetAllBooks serves the whole catalog, or the books matching the `q` query value.
func (api *APIHandler) GetAllBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var books []Book
	var err error
	if term := r.URL.Query().Get("q"); term != "" {
		books, err = api.catalog.Search(r.Context(), term)
	} else {
		books, err = api.catalog.FetchAll(r.Context())
	}
	if err != nil {
		api.sendError(r.Context(), w, ErrorStatusCode(err), "failed to get all books", []Book{}, err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to get all books")
	total := len(books)
	api.sendResponse(r.Context(), w, http.StatusOK, "All books fetched successfully.", &total, books)
}

func (api *APIHandler) GetOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	book, err := api.catalog.Get(r.Context(), id)
	if errors.Is(err, ErrBookNotFound) {
		api.sendError(r.Context(), w, http.StatusNotFound, "book does not exist", Book{ID: id}, err)
		return
	}
	if err != nil {
		api.sendError(r.Context(), w, ErrorStatusCode(err), "failed to get the book", Book{ID: id}, err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to get book", zap.String("book.id", id))
	api.sendResponse(r.Context(), w, http.StatusOK, "Book fetched successfully.", nil, book)
}

// CreateBook always creates a new record. Any id sent in the payload is ignored.
func (api *APIHandler) CreateBook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req BookRequest
	if err := DecodeRequestBody(r, &req); err != nil {
		api.sendError(r.Context(), w, http.StatusBadRequest, "failed to create the book", req.Book, err)
		return
	}

	book := req.ToBook()
	book.ID = ""
	if err := book.Validate(); err != nil {
		api.sendError(r.Context(), w, http.StatusBadRequest, "failed to create the book", err.Error(), err)
		return
	}

	saved, err := api.catalog.Save(r.Context(), book)
	if err != nil {
		api.sendError(r.Context(), w, ErrorStatusCode(err), "failed to create the book", book, err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to create book", zap.String("book.id", saved.ID))
	api.sendResponse(r.Context(), w, http.StatusCreated, "Book created successfully.", nil, saved)
}

// UpdateBook replaces the record identified by the path id. Unknown ids are
// rejected instead of being created under a fresh id.
func (api *APIHandler) UpdateBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req BookRequest
	id := ps.ByName("id")
	if err := DecodeRequestBody(r, &req); err != nil {
		api.sendError(r.Context(), w, http.StatusBadRequest, "failed to update the book", req.Book, err)
		return
	}

	book := req.ToBook()
	book.ID = id
	if err := book.Validate(); err != nil {
		api.sendError(r.Context(), w, http.StatusBadRequest, "failed to update the book", err.Error(), err)
		return
	}

	saved, err := api.catalog.Update(r.Context(), book)
	if errors.Is(err, ErrBookNotFound) {
		api.sendError(r.Context(), w, http.StatusNotFound, "book does not exist", book, err)
		return
	}
	if err != nil {
		api.sendError(r.Context(), w, ErrorStatusCode(err), "failed to update the book", book, err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to update book", zap.String("book.id", saved.ID))
	api.sendResponse(r.Context(), w, http.StatusOK, "Book updated successfully.", nil, saved)
}

// DeleteOneBook removes a book. Removing an unknown id succeeds.
func (api *APIHandler) DeleteOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	removed, err := api.catalog.Remove(r.Context(), id)
	if err != nil {
		api.sendError(r.Context(), w, ErrorStatusCode(err), "failed to delete the book", Book{ID: id}, err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to delete book", zap.String("book.id", removed))
	api.sendResponse(r.Context(), w, http.StatusOK, "Book deleted successfully.", nil, map[string]string{"id": removed})
}

// CatalogStatus serves the outcome of the latest catalog operation.
func (api *APIHandler) CatalogStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	api.sendResponse(r.Context(), w, http.StatusOK, "Catalog status fetched successfully.", nil, api.catalog.State())
}
