package middleware

import (
	"net/http"
	"net/http/httptest"
	"tea_refill/internal/domain"
	"tea_refill/internal/repository/memory"
	"tea_refill/internal/service"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def", "abc.def", true},
		{"bearer   abc.def ", "abc.def", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("bearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAuthenticateAndAuthorize(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := memory.NewStore()
	hash, err := service.HashPassword("pw")
	if err != nil {
		t.Fatal(err)
	}
	store.PutUser(domain.User{UserID: "K1", Username: "kitchen1", Password: hash, Role: domain.RoleKitchen})
	auth := service.NewAuthService(store.Users(), "mw-secret", time.Hour)
	resp, err := auth.Login(t.Context(), domain.LoginUserDTO{Username: "kitchen1", Password: "pw"})
	if err != nil {
		t.Fatal(err)
	}

	mw := NewAuthMiddleware(auth)
	r := gin.New()
	r.Use(mw.Authenticate())
	r.GET("/kitchens/:userId", mw.AuthorizeSelfOrAdmin("userId"), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(UserIDKey)+"/"+c.GetString(UserRoleKey))
	})
	r.GET("/admin", mw.AuthorizeRole("admin"), func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name   string
		path   string
		header string
		want   int
		body   string
	}{
		{"own resource", "/kitchens/K1", "Bearer " + resp.Token, http.StatusOK, "K1/kitchen"},
		{"someone else's resource", "/kitchens/K2", "Bearer " + resp.Token, http.StatusForbidden, ""},
		{"role not allowed", "/admin", "Bearer " + resp.Token, http.StatusForbidden, ""},
		{"no header", "/kitchens/K1", "", http.StatusUnauthorized, ""},
		{"tampered token", "/kitchens/K1", "Bearer " + resp.Token + "x", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(AuthorizationHeaderKey, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
			if tt.body != "" && w.Body.String() != tt.body {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.body)
			}
		})
	}
}
