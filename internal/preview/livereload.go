// livereload.go pushes reload events to connected browsers when the docs
// tree changes on disk.
package preview

import (
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"
)

type hub struct {
	logger   logr.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newHub(logger logr.Logger) *hub {
	return &hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			// preview binds to localhost; cross-origin checks add nothing here
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

func (h *hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.V(1).Info("websocket upgrade failed", "error", err.Error())
		return
	}
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	go func() {
		// drain until the peer goes away, then drop the connection
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		conn.Close()
	}()
}

func (h *hub) broadcast() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
			delete(h.conns, conn)
			conn.Close()
			continue
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte("reload"))
	}
}

// watchTree watches docsDir recursively and broadcasts debounced reload
// events. The returned stop function releases the watcher.
func watchTree(docsDir string, h *hub, logger logr.Logger) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	addDirs := func(root string) {
		_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}
			if err := watcher.Add(path); err != nil {
				logger.V(1).Info("watch failed", "dir", path, "error", err.Error())
			}
			return nil
		})
	}
	addDirs(docsDir)

	done := make(chan struct{})
	go func() {
		var timer *time.Timer
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						addDirs(event.Name)
					}
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(200*time.Millisecond, h.broadcast)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.V(1).Info("watcher error", "error", err.Error())
			}
		}
	}()
	return func() {
		close(done)
		watcher.Close()
	}, nil
}
