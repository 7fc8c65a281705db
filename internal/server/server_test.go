package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/desertthunder/melodex/internal/repositories"
	"github.com/desertthunder/melodex/internal/services"
	"github.com/desertthunder/melodex/internal/shared"
	"github.com/desertthunder/melodex/internal/spotify"
	tu "github.com/desertthunder/melodex/internal/testing"
)

// newTestServer wires the full stack onto an httptest server, with the
// Spotify accounts and API endpoints pointed at the given fake handlers.
func newTestServer(t *testing.T, apiHandler http.HandlerFunc) *httptest.Server {
	t.Helper()

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "R1",
		})
	}))
	t.Cleanup(tokenSrv.Close)

	apiSrv := httptest.NewServer(apiHandler)
	t.Cleanup(apiSrv.Close)

	auth, err := spotify.NewAuthenticator(shared.SpotifyConfig{
		ClientID:     "test_client_id",
		ClientSecret: "test_client_secret",
	}, nil)
	if err != nil {
		t.Fatalf("failed to create authenticator: %v", err)
	}
	auth.SetEndpoints("https://accounts.example.com/authorize", tokenSrv.URL)

	gw := spotify.NewGateway(spotify.GatewayOpts{Auth: auth, BaseURL: apiSrv.URL})
	spotifySvc := services.NewSpotifyService(auth, gw, nil)

	db := tu.SetupTestDB(t)
	userSvc := services.NewUserService(repositories.NewUserRepository(db), spotifySvc, nil)

	router := NewBasicRouter()
	NewHandlers(userSvc, spotifySvc, nil).Register(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func createUser(t *testing.T, srv *httptest.Server, name string, age int) int {
	t.Helper()

	body := `{"name": "` + name + `", "age": ` + strconv.Itoa(age) + `}`
	resp, err := http.Post(srv.URL+"/users", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, raw)
	}

	var created struct {
		ID int `json:"id"`
	}
	decodeBody(t, resp, &created)
	return created.ID
}

// connectUser walks the login redirect and callback for the user.
func connectUser(t *testing.T, srv *httptest.Server, userID int) {
	t.Helper()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	resp, err := client.Get(srv.URL + "/spotify/auth/" + strconv.Itoa(userID) + "/login")
	if err != nil {
		t.Fatalf("failed to start login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}

	location, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("failed to parse redirect: %v", err)
	}
	state := location.Query().Get("state")
	if state == "" {
		t.Fatal("expected state in authorize URL")
	}

	resp, err = http.Get(srv.URL + "/users/auth/callback?code=code123&state=" + state)
	if err != nil {
		t.Fatalf("failed to complete callback: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from callback, got %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("failed to get health: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]string
	decodeBody(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestUserRoutes(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	t.Run("Create", func(t *testing.T) {
		id := createUser(t, srv, "Alice Smith", 30)
		if id != 1 {
			t.Errorf("expected id 1, got %d", id)
		}
	})

	t.Run("Create With Malformed Body", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/users", "application/json", strings.NewReader("{"))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("Create With Invalid Age", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/users", "application/json", strings.NewReader(`{"name": "Kid Tester", "age": 12}`))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("Get", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/users/1")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		var user struct {
			Name string `json:"name"`
		}
		decodeBody(t, resp, &user)
		if user.Name != "Alice Smith" {
			t.Errorf("unexpected user: %+v", user)
		}
	})

	t.Run("Get Missing User", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/users/99")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("Get Non-Numeric ID", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/users/abc")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("Update", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPut, srv.URL+"/users/1", strings.NewReader(`{"name": "Alice Smith", "age": 31}`))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		var user struct {
			Age int `json:"age"`
		}
		decodeBody(t, resp, &user)
		if user.Age != 31 {
			t.Errorf("expected age 31, got %d", user.Age)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/users/1", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}

		resp, err = http.Get(srv.URL + "/users/1")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
		}
	})
}

func TestAuthCallbackRoute(t *testing.T) {
	t.Run("Completes Login", func(t *testing.T) {
		srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
		id := createUser(t, srv, "Alice Smith", 30)
		connectUser(t, srv, id)
	})

	t.Run("Login For Missing User", func(t *testing.T) {
		srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

		client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}}
		resp, err := client.Get(srv.URL + "/spotify/auth/99/login")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("Unknown State", func(t *testing.T) {
		srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

		resp, err := http.Get(srv.URL + "/users/auth/callback?code=code123&state=forged")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("Provider Error", func(t *testing.T) {
		srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

		resp, err := http.Get(srv.URL + "/users/auth/callback?error=access_denied")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("Missing Code", func(t *testing.T) {
		srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

		resp, err := http.Get(srv.URL + "/users/auth/callback?state=abc")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})
}

func TestSpotifyRoutes(t *testing.T) {
	apiHandler := func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			w.Write([]byte(`{"artists": {"items": [{"id": "a1", "name": "Radiohead"}]}, "tracks": {"items": [{"id": "t1", "name": "Karma Police"}]}}`))
		case "/me/following":
			if r.Method == http.MethodPut {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			w.Write([]byte(`{"artists": {"items": [{"id": "a1", "name": "Radiohead"}]}}`))
		case "/me/following/contains":
			w.Write([]byte(`[true, false]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}

	t.Run("Search Requires Login", func(t *testing.T) {
		srv := newTestServer(t, apiHandler)
		id := createUser(t, srv, "Alice Smith", 30)

		resp, err := http.Get(srv.URL + "/spotify/search/artist?user_id=" + strconv.Itoa(id) + "&q=Radiohead")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401 before login, got %d", resp.StatusCode)
		}
	})

	t.Run("Search Artists", func(t *testing.T) {
		srv := newTestServer(t, apiHandler)
		id := createUser(t, srv, "Alice Smith", 30)
		connectUser(t, srv, id)

		resp, err := http.Get(srv.URL + "/spotify/search/artist?user_id=" + strconv.Itoa(id) + "&q=Radiohead")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		var body struct {
			Count int `json:"count"`
			Items []struct {
				ID string `json:"id"`
			} `json:"items"`
		}
		decodeBody(t, resp, &body)
		if body.Count != 1 || body.Items[0].ID != "a1" {
			t.Errorf("unexpected body: %+v", body)
		}
	})

	t.Run("Search Missing Query", func(t *testing.T) {
		srv := newTestServer(t, apiHandler)
		id := createUser(t, srv, "Alice Smith", 30)

		resp, err := http.Get(srv.URL + "/spotify/search/track?user_id=" + strconv.Itoa(id))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("Follow Invalid Type", func(t *testing.T) {
		srv := newTestServer(t, apiHandler)
		id := createUser(t, srv, "Alice Smith", 30)
		connectUser(t, srv, id)

		req, _ := http.NewRequest(http.MethodPut,
			srv.URL+"/spotify/me/following?user_id="+strconv.Itoa(id)+"&type=band",
			strings.NewReader(`{"ids": ["a1"]}`))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("Follow Artists", func(t *testing.T) {
		srv := newTestServer(t, apiHandler)
		id := createUser(t, srv, "Alice Smith", 30)
		connectUser(t, srv, id)

		req, _ := http.NewRequest(http.MethodPut,
			srv.URL+"/spotify/me/following?user_id="+strconv.Itoa(id)+"&type=artist",
			strings.NewReader(`{"ids": ["a1", "a2"]}`))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}
	})

	t.Run("Check Following Zips IDs With Results", func(t *testing.T) {
		srv := newTestServer(t, apiHandler)
		id := createUser(t, srv, "Alice Smith", 30)
		connectUser(t, srv, id)

		resp, err := http.Get(srv.URL + "/spotify/me/following/contains?user_id=" + strconv.Itoa(id) + "&type=artist&ids=a1,a2")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		var statuses []struct {
			ID          string `json:"id"`
			IsFollowing bool   `json:"is_following"`
		}
		decodeBody(t, resp, &statuses)
		if len(statuses) != 2 {
			t.Fatalf("expected 2 statuses, got %d", len(statuses))
		}
		if statuses[0].ID != "a1" || !statuses[0].IsFollowing || statuses[1].IsFollowing {
			t.Errorf("unexpected statuses: %+v", statuses)
		}
	})

	t.Run("Add Favorite Artist", func(t *testing.T) {
		srv := newTestServer(t, apiHandler)
		id := createUser(t, srv, "Alice Smith", 30)
		connectUser(t, srv, id)

		resp, err := http.Post(srv.URL+"/users/"+strconv.Itoa(id)+"/favorites/artists?name=Radiohead", "application/json", nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		var artist struct {
			ID string `json:"id"`
		}
		decodeBody(t, resp, &artist)
		if artist.ID != "a1" {
			t.Errorf("unexpected artist: %+v", artist)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("RateLimit Rejects Over Burst", func(t *testing.T) {
		router := NewBasicRouter()
		router.Use(RateLimit(1, 1))
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		first := httptest.NewRecorder()
		router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if first.Code != http.StatusOK {
			t.Fatalf("expected first request allowed, got %d", first.Code)
		}

		second := httptest.NewRecorder()
		router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if second.Code != http.StatusTooManyRequests {
			t.Errorf("expected 429 once the bucket is drained, got %d", second.Code)
		}
	})

	t.Run("RateLimit Disabled For Non-Positive Limit", func(t *testing.T) {
		router := NewBasicRouter()
		router.Use(RateLimit(0, 0))
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		for range 5 {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("expected all requests allowed, got %d", rec.Code)
			}
		}
	})

	t.Run("RequestLogger Passes Through", func(t *testing.T) {
		router := NewBasicRouter()
		router.Use(RequestLogger(shared.NewLogger(io.Discard)))
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Code != http.StatusTeapot {
			t.Errorf("expected handler status preserved, got %d", rec.Code)
		}
	})
}

func TestRouterMiddlewareOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	router := NewBasicRouter()
	router.Use(tag("outer"), tag("inner"))
	router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	if len(order) != 3 || order[0] != "outer" || order[1] != "inner" || order[2] != "handler" {
		t.Errorf("unexpected order: %v", order)
	}
}
