package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server is the HTTP control surface: upload a list, watch progress, stop,
// export what remains.
type Server struct {
	config     *Config
	dispatcher *Dispatcher
	store      *SessionStore
	log        *zap.Logger
	upgrader   websocket.Upgrader
}

func NewServer(config *Config, dispatcher *Dispatcher, store *SessionStore, log *zap.Logger) *Server {
	return &Server{
		config:     config,
		dispatcher: dispatcher,
		store:      store,
		log:        log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/send_bulk_dms", s.handleSendBulk)
	mux.HandleFunc("/get_current_status", s.handleStatus)
	mux.HandleFunc("/get_remaining_messages", s.handleRemaining)
	mux.HandleFunc("/stop_process", s.handleStop)
	mux.HandleFunc("/reset_status", s.handleReset)
	mux.HandleFunc("/ws/progress", s.handleProgressWS)
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("response encode failed", zap.Error(err))
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexPage)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")
	if username == "" || password == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password required"})
		return
	}

	if err := s.store.CaptureLogin(s.config, s.log, username, password); err != nil {
		s.log.Error("login capture failed", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSendBulk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if _, err := s.store.AccountID(); err != nil {
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Not logged in"})
		return
	}

	file, header, err := r.FormFile("csv_file")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file uploaded"})
		return
	}
	defer file.Close()

	messageDelay, err := strconv.Atoi(r.FormValue("message_delay"))
	if err != nil || messageDelay < 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid form data"})
		return
	}
	numDMs, err := strconv.Atoi(r.FormValue("num_dms"))
	if err != nil || numDMs <= 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid form data"})
		return
	}
	followUsers := r.FormValue("follow_users") == "true"

	uploadPath, err := s.saveUpload(file, header.Filename)
	if err != nil {
		s.log.Error("upload save failed", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to save file"})
		return
	}

	uploaded, err := os.Open(uploadPath)
	if err != nil {
		_ = os.Remove(uploadPath)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to process CSV file"})
		return
	}
	candidates, err := NormalizeCSV(uploaded)
	uploaded.Close()
	if err != nil {
		_ = os.Remove(uploadPath)
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Failed to process CSV file"})
		return
	}

	cleanup := func() {
		if err := os.Remove(uploadPath); err != nil {
			s.log.Debug("upload cleanup failed", zap.String("path", uploadPath), zap.Error(err))
		}
	}

	campaign, err := s.dispatcher.Start(candidates, time.Duration(messageDelay)*time.Second, numDMs, followUsers, cleanup)
	if err != nil {
		cleanup()
		if errors.Is(err, ErrSessionMissing) {
			s.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Not logged in"})
			return
		}
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	snap := s.dispatcher.Snapshot()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "started",
		"campaign": campaign.ID,
		"total":    snap.Total,
		"message":  "DM sending process started",
	})
}

func (s *Server) saveUpload(src io.Reader, filename string) (string, error) {
	name := fmt.Sprintf("%d_%s", time.Now().UnixNano(), filepath.Base(filename))
	path := filepath.Join(s.config.UploadsDir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.dispatcher.Snapshot())
}

func (s *Server) handleRemaining(w http.ResponseWriter, r *http.Request) {
	remaining := s.dispatcher.Remaining()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=remaining_messages.csv")
	if err := WriteCandidatesCSV(w, remaining); err != nil {
		s.log.Debug("remaining export failed", zap.Error(err))
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.dispatcher.Stop()
	snap := s.dispatcher.Snapshot()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "stopped",
		"current": snap.Current,
		"message": "Process successfully stopped",
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.dispatcher.Reset()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// handleProgressWS streams snapshots once per second so the panel does not
// have to poll.
func (s *Server) handleProgressWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.WriteJSON(s.dispatcher.Snapshot()); err != nil {
			return
		}
	}
}

const indexPage = `<!DOCTYPE html>
<html>
<head><title>dmpilot</title></head>
<body>
<h1>dmpilot</h1>
<h2>Login</h2>
<form method="post" action="/login">
  <input name="username" placeholder="username">
  <input name="password" type="password" placeholder="password">
  <button type="submit">Log in</button>
</form>
<h2>Send bulk DMs</h2>
<form method="post" action="/send_bulk_dms" enctype="multipart/form-data">
  <input type="file" name="csv_file">
  <input name="message_delay" value="30"> delay (seconds)
  <input name="num_dms" value="10"> max messages
  <label><input type="checkbox" name="follow_users" value="true"> follow first</label>
  <button type="submit">Start</button>
</form>
<p>
  <a href="/get_current_status">status</a> |
  <a href="/get_remaining_messages">remaining</a> |
  <a href="/metrics">metrics</a>
</p>
<form method="post" action="/stop_process"><button type="submit">Stop</button></form>
</body>
</html>
`
