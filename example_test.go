package restproxy_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"

	"github.com/broady/restproxy"
)

type User struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Users struct {
	_ struct{} `restproxy:"/v1"`

	Get    func(ctx context.Context, id int) (*User, error)               `restproxy:"GET /users/{id}" params:"path:id"`
	Rename func(ctx context.Context, id int, u User) (*User, error)       `restproxy:"PATCH /users/{id}" params:"path:id,body" content:"application/json"`
	List   func(ctx context.Context, q string, limit int) ([]User, error) `restproxy:"GET /users" params:"query:q,query:limit"`
}

func Example() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/users/7":
			json.NewEncoder(w).Encode(User{ID: 7, Name: "Ada"})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/users":
			json.NewEncoder(w).Encode([]User{{ID: 7, Name: r.URL.Query().Get("q")}})
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"no route"}`)
		}
	}))
	defer srv.Close()

	users, err := restproxy.Build[Users](restproxy.NewBuilder().
		HTTPClient(srv.Client()).
		BaseURL(srv.URL))
	if err != nil {
		log.Fatal(err)
	}

	u, err := users.Get(context.Background(), 7)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(u.Name)

	list, err := users.List(context.Background(), "Grace Hopper", 10)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(list[0].Name)

	_, err = users.Rename(context.Background(), 7, User{Name: "Ada L."})
	fmt.Println(err)

	// Output:
	// Ada
	// Grace Hopper
	// 404 not_found: no route
}
