// Package flickrtest runs an in-process fake of the Flickr REST API backed
// by a fixed point set. It honours bbox, taken-date bounds, per_page and the
// per-query result cap, so partitioning can be exercised end to end.
package flickrtest

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"flickrharvest/pkg/flickr"
	"flickrharvest/pkg/region"
)

// Point is one photo in the fake index
type Point struct {
	ID    string
	Owner string
	Lat   float64
	Long  float64
	Taken time.Time
}

// Options configures a Server
type Options struct {
	// APIKey is the only key echo accepts; defaults to "test-key"
	APIKey string
	// MaxResults caps how deep a single query can be paginated; defaults to 4000
	MaxResults int
	// Hometowns maps owner ids to a published location
	Hometowns map[string]string
	// MissingSuffixes lists asset size suffixes that answer 404
	MissingSuffixes []string
	// AssetBody is served for every existing asset
	AssetBody []byte
	// OnSearch runs before each search request is answered
	OnSearch func(page int)
	// OnQuery sees the region and page of each search, in arrival order
	OnQuery func(r region.RegionClock, page int)
}

// Server is a running fake
type Server struct {
	server  *httptest.Server
	points  []Point
	opts    Options
	missing map[string]bool

	mu       sync.Mutex
	failures map[string]failure
	calls    map[string]*int32
	assets   int32
}

type failure struct {
	status  int
	code    int
	message string
}

// New starts a fake serving points
func New(points []Point, opts Options) *Server {
	if opts.APIKey == "" {
		opts.APIKey = "test-key"
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 4000
	}
	if opts.AssetBody == nil {
		opts.AssetBody = []byte("\xff\xd8\xff\xe0 fake jpeg")
	}

	s := &Server{
		points:   points,
		opts:     opts,
		missing:  make(map[string]bool),
		failures: make(map[string]failure),
		calls: map[string]*int32{
			flickr.MethodSearch:    new(int32),
			flickr.MethodEcho:      new(int32),
			flickr.MethodGetPerson: new(int32),
		},
	}
	for _, suffix := range opts.MissingSuffixes {
		s.missing[suffix] = true
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/services/rest/", s.handleREST)
	mux.HandleFunc("/assets/", s.handleAsset)
	s.server = httptest.NewServer(mux)
	return s
}

// Close stops the server
func (s *Server) Close() { s.server.Close() }

// BaseURL is the REST endpoint
func (s *Server) BaseURL() string { return s.server.URL + "/services/rest/" }

// AssetBaseURL is the static asset host
func (s *Server) AssetBaseURL() string { return s.server.URL + "/assets" }

// APIKey is the accepted key
func (s *Server) APIKey() string { return s.opts.APIKey }

// Calls counts requests for one API method
func (s *Server) Calls(method string) int {
	if c, ok := s.calls[method]; ok {
		return int(atomic.LoadInt32(c))
	}
	return 0
}

// AssetRequests counts asset requests, including 404s
func (s *Server) AssetRequests() int { return int(atomic.LoadInt32(&s.assets)) }

// Fail makes every later call to method answer stat=fail with code and
// message. status, when non-zero, is sent as the HTTP status instead.
func (s *Server) Fail(method string, status, code int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = failure{status: status, code: code, message: message}
}

// Match returns the ids an unbounded query over r would return, sorted
func (s *Server) Match(r region.RegionClock) []string {
	var ids []string
	for _, p := range s.query(r) {
		ids = append(ids, p.ID)
	}
	sort.Strings(ids)
	return ids
}

func (s *Server) handleREST(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	method := q.Get("method")
	if c, ok := s.calls[method]; ok {
		atomic.AddInt32(c, 1)
	}

	s.mu.Lock()
	f, failing := s.failures[method]
	s.mu.Unlock()
	if failing {
		if f.status != 0 {
			w.WriteHeader(f.status)
			return
		}
		writeJSON(w, map[string]interface{}{"stat": "fail", "code": f.code, "message": f.message})
		return
	}

	if q.Get("api_key") != s.opts.APIKey {
		writeJSON(w, map[string]interface{}{"stat": "fail", "code": 100, "message": "Invalid API Key (Key has invalid format)"})
		return
	}

	switch method {
	case flickr.MethodEcho:
		writeJSON(w, map[string]interface{}{"stat": "ok", "method": map[string]string{"_content": method}})
	case flickr.MethodSearch:
		s.handleSearch(w, q)
	case flickr.MethodGetPerson:
		s.handlePerson(w, q.Get("user_id"))
	default:
		writeJSON(w, map[string]interface{}{"stat": "fail", "code": 112, "message": fmt.Sprintf("Method %q not found", method)})
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, q map[string][]string) {
	get := func(k string) string {
		if v := q[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}

	r, err := parseRegion(get("bbox"), get("min_taken_date"), get("max_taken_date"))
	if err != nil {
		writeJSON(w, map[string]interface{}{"stat": "fail", "code": 3, "message": err.Error()})
		return
	}
	page, _ := strconv.Atoi(get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(get("per_page"))
	if perPage <= 0 {
		perPage = 100
	}
	if s.opts.OnSearch != nil {
		s.opts.OnSearch(page)
	}
	if s.opts.OnQuery != nil {
		s.opts.OnQuery(r, page)
	}

	matches := s.query(r)
	total := len(matches)
	pages := (total + perPage - 1) / perPage

	// Pages past the result cap come back empty; pages still reports the
	// true count.
	var slice []Point
	start := (page - 1) * perPage
	if start < total && start < s.opts.MaxResults {
		end := min(start+perPage, total, s.opts.MaxResults)
		slice = matches[start:end]
	}

	photos := make([]map[string]interface{}, 0, len(slice))
	for _, p := range slice {
		photos = append(photos, map[string]interface{}{
			"id":        p.ID,
			"owner":     p.Owner,
			"secret":    "s" + p.ID,
			"server":    "7",
			"farm":      1,
			"title":     "photo " + p.ID,
			"latitude":  strconv.FormatFloat(p.Lat, 'f', -1, 64),
			"longitude": strconv.FormatFloat(p.Long, 'f', -1, 64),
			"accuracy":  "16",
			"datetaken": p.Taken.UTC().Format(flickr.DateLayout),
			"tags":      "fake",
			"ownername": "owner " + p.Owner,
		})
	}

	writeJSON(w, map[string]interface{}{
		"stat": "ok",
		"photos": map[string]interface{}{
			"page":    page,
			"pages":   pages,
			"perpage": perPage,
			"total":   strconv.Itoa(total),
			"photo":   photos,
		},
	})
}

func (s *Server) handlePerson(w http.ResponseWriter, owner string) {
	person := map[string]interface{}{
		"nsid":     owner,
		"username": map[string]string{"_content": "user-" + owner},
	}
	if town, ok := s.opts.Hometowns[owner]; ok {
		person["location"] = map[string]string{"_content": town}
	}
	writeJSON(w, map[string]interface{}{"stat": "ok", "person": person})
}

// handleAsset serves /assets/{server}/{id}_{secret}[_{suffix}].jpg
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&s.assets, 1)
	name := strings.TrimSuffix(r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:], ".jpg")
	parts := strings.Split(name, "_")
	suffix := ""
	if len(parts) == 3 {
		suffix = parts[2]
	}
	if s.missing[suffix] {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(s.opts.AssetBody)
}

// query returns every point inside r in a stable order
func (s *Server) query(r region.RegionClock) []Point {
	var out []Point
	for _, p := range s.points {
		if r.Contains(p.Lat, p.Long, p.Taken) {
			out = append(out, p)
		}
	}
	return out
}

func parseRegion(bbox, minDate, maxDate string) (region.RegionClock, error) {
	var r region.RegionClock
	parts := strings.Split(bbox, ",")
	if len(parts) != 4 {
		return r, fmt.Errorf("invalid bbox %q", bbox)
	}
	var coords [4]float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return r, fmt.Errorf("invalid bbox %q", bbox)
		}
		coords[i] = v
	}
	start, err := time.Parse(flickr.DateLayout, minDate)
	if err != nil {
		return r, fmt.Errorf("invalid min_taken_date %q", minDate)
	}
	end, err := time.Parse(flickr.DateLayout, maxDate)
	if err != nil {
		return r, fmt.Errorf("invalid max_taken_date %q", maxDate)
	}
	return region.RegionClock{
		West: coords[0], South: coords[1], East: coords[2], North: coords[3],
		Start: start, End: end,
	}, nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// Scatter places n points uniformly at random inside area, owned by owners
// distinct users. Points are taken at whole seconds. The same seed always
// gives the same points.
func Scatter(n, owners int, seed int64, area region.RegionClock) []Point {
	rng := rand.New(rand.NewSource(seed))
	secs := int64(area.Duration() / time.Second)
	if owners < 1 {
		owners = 1
	}

	points := make([]Point, n)
	for i := range points {
		points[i] = Point{
			ID:    strconv.Itoa(100000 + i),
			Owner: fmt.Sprintf("%d@N0%d", i%owners, i%owners%10),
			Lat:   area.South + rng.Float64()*area.LatSpan(),
			Long:  area.West + rng.Float64()*area.LongSpan(),
			Taken: area.Start.Add(time.Duration(rng.Int63n(secs+1)) * time.Second),
		}
	}
	return points
}

// Cluster places n points at exactly one location, spread over the time
// window. No spatial split can separate them.
func Cluster(n int, lat, long float64, area region.RegionClock) []Point {
	secs := int64(area.Duration() / time.Second)
	points := make([]Point, n)
	for i := range points {
		offset := int64(0)
		if n > 1 {
			offset = secs * int64(i) / int64(n-1)
		}
		points[i] = Point{
			ID:    strconv.Itoa(500000 + i),
			Owner: "cluster@N01",
			Lat:   lat,
			Long:  long,
			Taken: area.Start.Add(time.Duration(offset) * time.Second),
		}
	}
	return points
}
