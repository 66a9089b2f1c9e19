package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crudd/internal/common/inflect"
	"crudd/internal/crud"
	"crudd/internal/listener"
	"crudd/internal/orm"
	"crudd/internal/registry"
	"crudd/internal/view"
	"crudd/pkg/types"
)

// Service is what the HTTP layer serves: resource definitions over a set
// of tables.
type Service struct {
	Resources []*registry.Resource
	Tables    *orm.Locator
	// Listeners holds option tables keyed by listener name.
	Listeners map[string]map[string]any
	// Messages are merged over the orchestrator's default messages.
	Messages map[string]any
	// Prefix is prepended to every resource path.
	Prefix string
	// Debug exposes query logs and attaches the event log listener.
	Debug bool
}

// NewService registers the built-in views and listeners and returns a
// service for resources.
func NewService(resources []*registry.Resource, tables *orm.Locator) *Service {
	view.Register()
	listener.Register()
	return &Service{Resources: resources, Tables: tables}
}

// Ready reports whether tables are available.
func (s *Service) Ready() bool { return s.Tables != nil }

// Validate checks that every listener a resource names is registered and
// that the search listener only sits on tables with the Search behavior.
func (s *Service) Validate() error {
	known := map[string]bool{}
	for _, k := range crud.ListenerKinds() {
		known[k] = true
	}
	for _, res := range s.Resources {
		for _, name := range res.Listeners {
			kind := strings.ToLower(name)
			if !known[kind] {
				return fmt.Errorf("resource %s: unknown listener %q", res.Name, name)
			}
			if kind == listener.KindSearch && !res.HasBehavior("Search") {
				return fmt.Errorf("resource %s: search listener requires the Search behavior", res.Name)
			}
		}
		if _, ok := s.Tables.Get(res.Name); !ok {
			return fmt.Errorf("resource %s: table is not registered", res.Name)
		}
	}
	return nil
}

func (s *Service) resourcePath(res *registry.Resource) string {
	return strings.TrimSuffix(s.Prefix, "/") + "/" + inflect.Underscore(res.Name)
}

// listenerNames returns the listeners to attach for one request.
// JsonApi and Api are alternatives: JsonApi serves JSON:API requests and
// Api everything else when both are listed.
func (s *Service) listenerNames(res *registry.Resource, jsonAPI bool) []string {
	listed := map[string]bool{}
	for _, n := range res.Listeners {
		listed[strings.ToLower(n)] = true
	}
	var out []string
	for _, n := range res.Listeners {
		switch strings.ToLower(n) {
		case listener.KindJSONAPI:
			if !jsonAPI {
				continue
			}
		case listener.KindAPI:
			if jsonAPI && listed[listener.KindJSONAPI] {
				continue
			}
		}
		out = append(out, strings.ToLower(n))
	}
	if s.Debug && !listed[listener.KindEventLog] {
		out = append(out, listener.KindEventLog)
	}
	return out
}

// newCrud builds the per-request orchestrator for res.
func (s *Service) newCrud(ctrl *crud.Controller, res *registry.Resource, jsonAPI bool) (*crud.Crud, error) {
	var opts []crud.Option
	if len(s.Messages) > 0 {
		opts = append(opts, crud.WithMessages(s.Messages))
	}
	c := crud.New(ctrl, opts...)
	for _, name := range res.ActionNames() {
		a := res.Actions[name]
		if err := c.MapAction(name, a.Kind, a.ActionConfig, a.IsEnabled()); err != nil {
			return nil, err
		}
	}
	for _, name := range s.listenerNames(res, jsonAPI) {
		if err := c.AddListener(name, name, s.Listeners[name]); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// resolver picks the action and its arguments once the effective method
// is known.
type resolver func(method string) (action string, args []string, err error)

func (s *Service) serve(w http.ResponseWriter, r *http.Request, res *registry.Resource, resolve resolver) {
	start := time.Now()
	jsonAPI := isJSONAPI(r)
	// Join server base context with request context so shutdown cancels work too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()

	action := ""
	fail := func(err error) {
		status := writeError(w, err, jsonAPI)
		incrementActionErrors(res.Name, status)
		logAction(r, res.Name, action, status, start, err)
	}

	req, err := newCrudRequest(ctx, w, r)
	if err != nil {
		fail(err)
		return
	}
	action, args, err := resolve(req.Method)
	if err != nil {
		fail(err)
		return
	}
	req.Params["action"] = action

	flash := readFlash(r)
	ctrl := crud.NewController(res.Name, req,
		crud.WithTables(s.Tables),
		crud.WithFlash(flash),
		crud.WithRouter(crud.PathRouter{Prefix: strings.TrimSuffix(s.Prefix, "/")}),
		crud.WithDebug(s.Debug),
	)
	c, err := s.newCrud(ctrl, res, jsonAPI)
	if err != nil {
		fail(err)
		return
	}
	resp, err := c.Execute(action, args)
	if err != nil {
		// If context was canceled (client disconnect or shutdown), just return.
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		fail(err)
		return
	}
	flash.write(w, resp)
	status := writeResponse(w, resp)
	logAction(r, res.Name, action, status, start, nil)
}

func writeResponse(w http.ResponseWriter, resp *crud.Response) int {
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return http.StatusNoContent
	}
	for k, v := range resp.Header {
		w.Header()[k] = v
	}
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}
	return status
}

// idAction maps a method on "/<resource>/<id>" to an action.
func idAction(method string) (string, error) {
	switch method {
	case http.MethodGet, http.MethodHead:
		return crud.KindView, nil
	case http.MethodPut, http.MethodPatch, http.MethodPost:
		return crud.KindEdit, nil
	case http.MethodDelete:
		return crud.KindDelete, nil
	}
	return "", crud.MethodNotAllowed(fmt.Sprintf("Method %s is not allowed here", method))
}

func splitArgs(rest string) []string {
	var out []string
	for _, p := range strings.Split(rest, "/") {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// mountResource registers the routes of res on r:
//
//	GET  /<resource>             index
//	POST /<resource>             add
//	*    /<resource>/<action>/*  any mapped action, pass args from the path
//	*    /<resource>/<id>        view, edit or delete by method
func (s *Service) mountResource(r chi.Router, res *registry.Resource) {
	r.Route(s.resourcePath(res), func(rr chi.Router) {
		rr.Use(inflightMiddleware(res.Name))
		rr.Get("/", func(w http.ResponseWriter, r *http.Request) {
			s.serve(w, r, res, func(string) (string, []string, error) { return crud.KindIndex, nil, nil })
		})
		rr.Post("/", func(w http.ResponseWriter, r *http.Request) {
			s.serve(w, r, res, func(string) (string, []string, error) { return crud.KindAdd, nil, nil })
		})
		rr.HandleFunc("/{segment}", func(w http.ResponseWriter, r *http.Request) {
			seg := chi.URLParam(r, "segment")
			s.serve(w, r, res, func(method string) (string, []string, error) {
				if _, ok := res.Actions[seg]; ok {
					return seg, nil, nil
				}
				action, err := idAction(method)
				return action, []string{seg}, err
			})
		})
		rr.HandleFunc("/{action}/*", func(w http.ResponseWriter, r *http.Request) {
			action := chi.URLParam(r, "action")
			args := splitArgs(chi.URLParam(r, "*"))
			s.serve(w, r, res, func(string) (string, []string, error) { return action, args, nil })
		})
	})
}

// Routes lists the routes mounted for every resource, in resource order.
func (s *Service) Routes() []types.Route {
	var out []types.Route
	for _, res := range s.Resources {
		base := s.resourcePath(res)
		if _, ok := res.Actions[crud.KindIndex]; ok {
			out = append(out, types.Route{Methods: []string{http.MethodGet}, Pattern: base, Resource: res.Name, Action: crud.KindIndex})
		}
		if _, ok := res.Actions[crud.KindAdd]; ok {
			out = append(out, types.Route{Methods: []string{http.MethodPost}, Pattern: base, Resource: res.Name, Action: crud.KindAdd})
		}
		for _, name := range res.ActionNames() {
			a := res.Actions[name]
			p := base + "/" + name
			switch a.Kind {
			case crud.KindView, crud.KindEdit, crud.KindDelete:
				p += "/{id}"
			}
			out = append(out, types.Route{Methods: kindMethods(a.Kind), Pattern: p, Resource: res.Name, Action: name})
		}
		for _, kind := range []string{crud.KindView, crud.KindEdit, crud.KindDelete} {
			if _, ok := res.Actions[kind]; !ok {
				continue
			}
			methods := kindMethods(kind)
			if kind == crud.KindEdit {
				methods = []string{http.MethodPut, http.MethodPatch, http.MethodPost}
			}
			if kind == crud.KindDelete {
				methods = []string{http.MethodDelete}
			}
			out = append(out, types.Route{Methods: methods, Pattern: base + "/{id}", Resource: res.Name, Action: kind})
		}
	}
	return out
}

func kindMethods(kind string) []string {
	switch kind {
	case crud.KindAdd:
		return []string{http.MethodGet, http.MethodPost, http.MethodPut}
	case crud.KindEdit:
		return []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodPost}
	case crud.KindDelete:
		return []string{http.MethodPost, http.MethodDelete}
	default:
		return []string{http.MethodGet}
	}
}

func (s *Service) describe() types.ResourcesResponse {
	out := types.ResourcesResponse{Resources: []types.Resource{}}
	for _, res := range s.Resources {
		listeners := append([]string{}, res.Listeners...)
		sort.Strings(listeners)
		out.Resources = append(out.Resources, types.Resource{
			Name:      res.Name,
			Table:     res.Table,
			Actions:   res.ActionNames(),
			Listeners: listeners,
		})
	}
	return out
}

func NewMux(svc *Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(corsOptions()))
	}
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(stripExtension)

	r.Get("/resources", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.describe()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)

	for _, res := range svc.Resources {
		svc.mountResource(r, res)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "Not found")
	})
	return r
}
