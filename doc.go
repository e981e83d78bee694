// Package restproxy implements declarative HTTP clients.
//
// A client is described once, either as a struct of funcs with route tags
// or as an interface marked with //restproxy:client for the restproxy gen
// command. Every method call then runs the same pipeline: resolve the verb,
// expand the URI template and query, set headers and cookies, encode the
// body, exchange through the filters and transport, and decode the response
// or error.
//
//	type Items struct {
//	    _      struct{} `restproxy:"/api/v1"`
//	    Get    func(ctx context.Context, id string) (*Item, error) `restproxy:"GET /items/{id}" params:"path:id"`
//	    Create func(ctx context.Context, item *Item) (*Item, error) `restproxy:"POST /items" params:"body" content:"application/json"`
//	}
//
//	items, err := restproxy.Build[Items](restproxy.NewBuilder().
//	    HTTPClient(http.DefaultClient).
//	    BaseURL("https://api.example.com"))
//
// Each pipeline step is an InvocationFunctions strategy. Defaults can be
// replaced for all methods with Builder.CommonFunctions or for one method
// with Builder.MethodFunctions. Cross-cutting behavior such as logging,
// auth, metrics and caching lives in ExchangeFilters; see package
// middleware.
package restproxy
