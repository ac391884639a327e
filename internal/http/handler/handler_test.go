package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/edirooss/choreo/internal/choreographer"
	"github.com/edirooss/choreo/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func init() { gin.SetMode(gin.TestMode) }

type staticSnapshots []choreographer.Stats

func (s staticSnapshots) Snapshot() []choreographer.Stats { return s }

type fakeDisplay struct {
	period time.Duration
	err    error
}

func (d *fakeDisplay) Period() time.Duration { return d.period }

func (d *fakeDisplay) SetPeriod(p time.Duration) error {
	if d.err != nil {
		return d.err
	}
	d.period = p
	return nil
}

type staticFrames service.FrameStats

func (f staticFrames) Snapshot() service.FrameStats { return service.FrameStats(f) }

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestChoreographers_GetList(t *testing.T) {
	id := uuid.New()
	h := NewChoreographersHandler(zap.NewNop(), staticSnapshots{{LoopID: id, State: "idle", PendingCallbacks: 2}})
	r := gin.New()
	r.GET("/api/choreographers", h.GetList)

	w := serve(r, http.MethodGet, "/api/choreographers", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get("X-Total-Count") != "1" || w.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("headers = %v", w.Header())
	}
	if w.Header().Get("X-Summary-Generated-At") == "" {
		t.Fatal("missing X-Summary-Generated-At")
	}

	var got []choreographer.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].LoopID != id || got[0].PendingCallbacks != 2 {
		t.Fatalf("body = %+v", got)
	}

	if w := serve(r, http.MethodGet, "/api/choreographers", ""); w.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("second request X-Cache = %q, want HIT", w.Header().Get("X-Cache"))
	}
	if w := serve(r, http.MethodGet, "/api/choreographers?force=1", ""); w.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("forced request X-Cache = %q, want MISS", w.Header().Get("X-Cache"))
	}
}

func TestChoreographers_EmptyListIsArray(t *testing.T) {
	h := NewChoreographersHandler(zap.NewNop(), staticSnapshots{})
	r := gin.New()
	r.GET("/api/choreographers", h.GetList)

	w := serve(r, http.MethodGet, "/api/choreographers", "")
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Fatalf("body = %s, want []", body)
	}
}

func TestFrames(t *testing.T) {
	r := gin.New()
	r.GET("/api/frames", Frames(staticFrames{Running: true, Frames: 12, FPS: 60}))

	w := serve(r, http.MethodGet, "/api/frames", "")
	var got service.FrameStats
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Running || got.Frames != 12 || got.FPS != 60 {
		t.Fatalf("body = %+v", got)
	}
}

func displayRouter(d DisplayController) *gin.Engine {
	h := NewDisplayHandler(zap.NewNop(), func() DisplayController {
		if d == nil {
			return nil
		}
		return d
	})
	r := gin.New()
	r.GET("/refresh-rate", h.GetRefreshRate)
	r.PUT("/refresh-rate", h.SetRefreshRate)
	return r
}

func TestDisplay_GetRefreshRate(t *testing.T) {
	r := displayRouter(&fakeDisplay{period: time.Second / 50})

	w := serve(r, http.MethodGet, "/refresh-rate", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got struct {
		Period int64   `json:"vsync_period_ns"`
		Hz     float64 `json:"refresh_rate_hz"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Period != int64(time.Second/50) || got.Hz != 50 {
		t.Fatalf("body = %+v", got)
	}
}

func TestDisplay_SetRefreshRate(t *testing.T) {
	d := &fakeDisplay{period: time.Second / 60}
	r := displayRouter(d)

	w := serve(r, http.MethodPut, "/refresh-rate", `{"refresh_rate_hz": 120}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if d.period != time.Second/120 {
		t.Fatalf("period = %s", d.period)
	}
}

func TestDisplay_SetRefreshRateErrors(t *testing.T) {
	tests := []struct {
		name    string
		display DisplayController
		body    string
		want    int
	}{
		{"missing rate", &fakeDisplay{}, `{}`, http.StatusBadRequest},
		{"negative rate", &fakeDisplay{}, `{"refresh_rate_hz": -1}`, http.StatusBadRequest},
		{"too fast", &fakeDisplay{}, `{"refresh_rate_hz": 5000}`, http.StatusBadRequest},
		{"not json", &fakeDisplay{}, `hz=60`, http.StatusBadRequest},
		{"remote display", nil, `{"refresh_rate_hz": 60}`, http.StatusNotFound},
		{"display error", &fakeDisplay{err: errors.New("closed")}, `{"refresh_rate_hz": 60}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(displayRouter(tt.display), http.MethodPut, "/refresh-rate", tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestDisplay_GetWithoutController(t *testing.T) {
	w := serve(displayRouter(nil), http.MethodGet, "/refresh-rate", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
