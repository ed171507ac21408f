package contact_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"perfumery-notify/internal/domain/entity"
)

func TestInbox_GetAndMarkRead(t *testing.T) {
	repo, n := &stubRepo{}, &stubNotifier{}
	h := newRouter(repo, n, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/contact-messages", strings.NewReader(validBody)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/inbox/1/read", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("read status=%d body=%s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inbox/1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status=%d body=%s", rec.Code, rec.Body)
	}
	var msg entity.ContactMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatal(err)
	}
	if !msg.Read || msg.Subject != "Samples" {
		t.Fatalf("msg=%+v", msg)
	}
}

func TestInbox_Errors(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"unknown message", http.MethodGet, "/inbox/7", http.StatusNotFound},
		{"unknown message read", http.MethodPost, "/inbox/7/read", http.StatusNotFound},
		{"non numeric id", http.MethodGet, "/inbox/abc", http.StatusBadRequest},
		{"zero id", http.MethodGet, "/inbox/0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newRouter(&stubRepo{}, &stubNotifier{}, nil).ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestInbox_List(t *testing.T) {
	repo, n := &stubRepo{}, &stubNotifier{}
	h := newRouter(repo, n, nil)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/contact-messages", strings.NewReader(validBody)))
		if rec.Code != http.StatusCreated {
			t.Fatalf("create status=%d body=%s", rec.Code, rec.Body)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/inbox/3/read", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("read status=%d", rec.Code)
	}

	tests := []struct {
		query     string
		wantIDs   []int64
		wantTotal int64
		wantPages int
	}{
		{"", []int64{3, 2, 1}, 3, 1},
		{"?limit=2&page=2", []int64{1}, 3, 2},
		{"?unread=true", []int64{2, 1}, 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inbox"+tt.query, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
			}
			var page struct {
				Data       []entity.ContactMessage `json:"data"`
				Pagination struct {
					Total      int64 `json:"total"`
					TotalPages int   `json:"total_pages"`
				} `json:"pagination"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
				t.Fatal(err)
			}
			var ids []int64
			for _, m := range page.Data {
				ids = append(ids, m.ID)
			}
			if len(ids) != len(tt.wantIDs) {
				t.Fatalf("ids=%v want %v", ids, tt.wantIDs)
			}
			for i := range ids {
				if ids[i] != tt.wantIDs[i] {
					t.Fatalf("ids=%v want %v", ids, tt.wantIDs)
				}
			}
			if page.Pagination.Total != tt.wantTotal || page.Pagination.TotalPages != tt.wantPages {
				t.Fatalf("pagination=%+v", page.Pagination)
			}
		})
	}
}

func TestInbox_ListBadQuery(t *testing.T) {
	for _, q := range []string{"?page=0", "?limit=1000", "?unread=maybe"} {
		rec := httptest.NewRecorder()
		newRouter(&stubRepo{}, &stubNotifier{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inbox"+q, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d want 400", q, rec.Code)
		}
	}
}
