package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// UserView is the public shape of a user. The password never leaves the api.
type UserView struct {
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Username string `json:"username"`
	Phone    string `json:"phone"`
	Gender   string `json:"gender"`
}

func NewUserView(u User) UserView {
	return UserView{
		Name:     u.Name,
		Surname:  u.Surname,
		Username: u.Username,
		Phone:    u.Phone,
		Gender:   u.Gender,
	}
}

// Register creates or overwrites the account of the given username.
func (api *APIHandler) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req RegisterRequest
	if err := DecodeRequestBody(r, &req); err != nil {
		api.sendError(r.Context(), w, http.StatusBadRequest, "failed to register the user", EmptyData, err)
		return
	}

	if err := req.Validate(); err != nil {
		api.sendError(r.Context(), w, http.StatusBadRequest, "failed to register the user", err.Error(), err)
		return
	}

	if err := api.sessions.Register(r.Context(), req.User); err != nil {
		api.sendError(r.Context(), w, ErrorStatusCode(err), "failed to register the user", EmptyData, err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to register user", zap.String("user.username", req.Username))
	api.sendResponse(r.Context(), w, http.StatusCreated, "User registered successfully.", nil, NewUserView(req.User))
}

// Login opens the session of the user, replacing any active one.
func (api *APIHandler) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req LoginRequest
	if err := DecodeRequestBody(r, &req); err != nil {
		api.sendError(r.Context(), w, http.StatusBadRequest, "failed to login", EmptyData, err)
		return
	}

	if err := req.Validate(); err != nil {
		api.sendError(r.Context(), w, http.StatusBadRequest, "failed to login", err.Error(), err)
		return
	}

	user, err := api.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		api.sendError(r.Context(), w, ErrorStatusCode(err), "failed to login", err.Error(), err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to login", zap.String("user.username", user.Username))
	api.sendResponse(r.Context(), w, http.StatusOK, "User logged in successfully.", nil, NewUserView(user))
}

// GetSession serves the logged in user. Without session the data is null.
func (api *APIHandler) GetSession(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user, err := api.sessions.CurrentSession(r.Context())
	if err != nil {
		api.sendError(r.Context(), w, ErrorStatusCode(err), "failed to get the session", EmptyData, err)
		return
	}
	if user == nil {
		api.sendResponse(r.Context(), w, http.StatusOK, "No active session.", nil, nil)
		return
	}
	api.sendResponse(r.Context(), w, http.StatusOK, "Session fetched successfully.", nil, NewUserView(*user))
}

// Logout closes the active session. It succeeds without one.
func (api *APIHandler) Logout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := api.sessions.Logout(r.Context()); err != nil {
		api.sendError(r.Context(), w, ErrorStatusCode(err), "failed to logout", EmptyData, err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to logout")
	api.sendResponse(r.Context(), w, http.StatusOK, "User logged out successfully.", nil, EmptyData)
}
