package httpapi

import (
	"net/http"
	"sort"
	"strconv"
)

// queryResponsePost is one scored match in a query response.
type queryResponsePost struct {
	PostID    int64           `json:"post_id"`
	Score     float32         `json:"score"`
	Hash      string          `json:"hash"`
	Signature signatureFields `json:"signature"`
}

type queryResponse struct {
	Posts []queryResponsePost `json:"posts"`
}

// HandleQuery implements GET|POST /query?limit=K&hash=… or multipart
// file=….
func (app *App) HandleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}

	target, err := resolveSignature(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := app.Config.Get().Query
	limit := cfg.DefaultLimit
	if l, ok := parseLimitParam(r); ok && l > 0 {
		limit = l
	}
	if cfg.MaxLimit > 0 && limit > cfg.MaxLimit {
		limit = cfg.MaxLimit
	}

	results := app.Engine.Query(target, limit)
	if len(results) == 0 {
		WriteJSON(w, http.StatusOK, queryResponse{Posts: []queryResponsePost{}})
		return
	}

	ids := make([]int64, len(results))
	scores := make(map[int64]float32, len(results))
	for i, res := range results {
		ids[i] = res.ID
		scores[res.ID] = res.Score
	}

	records, err := app.Store.GetMany(ids)
	if err != nil {
		logAndFail(w, "query: enrich results", err)
		return
	}

	posts := make([]queryResponsePost, 0, len(records))
	for _, rec := range records {
		posts = append(posts, queryResponsePost{
			PostID:    rec.ID,
			Score:     scores[rec.ID],
			Hash:      rec.Sig.Format(),
			Signature: signatureFieldsOf(rec.Sig),
		})
	}
	// The engine already orders results descending by score, ties by
	// ascending id;
	// re-sort since GetMany's row order isn't guaranteed to match.
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].Score != posts[j].Score {
			return posts[i].Score > posts[j].Score
		}
		return posts[i].PostID < posts[j].PostID
	})

	WriteJSON(w, http.StatusOK, queryResponse{Posts: posts})
}

func parseLimitParam(r *http.Request) (int, bool) {
	q := r.URL.Query()
	s := q.Get("limit")
	if s == "" {
		s = q.Get("l")
	}
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
