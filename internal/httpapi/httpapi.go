// Package httpapi binds the five external operations (bootstrap,
// compute_policy, policy_suggestion, compute_reroll_policy,
// query_reroll_recommendation) to JSON HTTP handlers on a gorilla/mux
// router, plus one websocket route for lambda-search progress. It fronts a
// long-running background computation with a thin HTTP layer: many
// independently-tracked jobs keyed by id rather than a single implicit run.
package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/2-07665/ww-echo-policy-calculator/internal/apperrors"
	"github.com/2-07665/ww-echo-policy-calculator/internal/catalog"
	"github.com/2-07665/ww-echo-policy-calculator/internal/costmodel"
	"github.com/2-07665/ww-echo-policy-calculator/internal/lambdasearch"
	"github.com/2-07665/ww-echo-policy-calculator/internal/montecarlo"
	"github.com/2-07665/ww-echo-policy-calculator/internal/policycache"
	"github.com/2-07665/ww-echo-policy-calculator/internal/reroll"
	"github.com/2-07665/ww-echo-policy-calculator/internal/scorer"
	"github.com/2-07665/ww-echo-policy-calculator/internal/telemetry"
)

// progressBuffer is how many lambda-search events a job's progress channel
// holds before the search starts dropping each new snapshot it emits
// (the search's emit is already non-blocking; this just gives a slow-to-attach
// websocket client a short backlog to catch up on).
const progressBuffer = 32

// jobStatus is a compute_policy job's lifecycle stage.
type jobStatus int

const (
	jobRunning jobStatus = iota
	jobReady
	jobFailed
)

// job tracks one in-flight or completed compute_policy call.
type job struct {
	mu       sync.RWMutex
	status   jobStatus
	handle   policycache.Handle
	err      error
	progress chan telemetry.Event
}

func (j *job) snapshot() (jobStatus, policycache.Handle, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status, j.handle, j.err
}

func (j *job) finish(h policycache.Handle, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err != nil {
		j.status, j.err = jobFailed, err
	} else {
		j.status, j.handle = jobReady, h
	}
	close(j.progress)
}

// API wires a Cache to the external HTTP surface.
type API struct {
	cat   *catalog.Catalogue
	cache *policycache.Cache

	mu   sync.RWMutex
	jobs map[string]*job
}

// New builds an API over cache, answering bootstrap from cat.
func New(cat *catalog.Catalogue, cache *policycache.Cache) *API {
	return &API{cat: cat, cache: cache, jobs: make(map[string]*job)}
}

// Router registers every route on a fresh gorilla/mux.Router.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/bootstrap", a.handleBootstrap).Methods(http.MethodGet)
	r.HandleFunc("/policies", a.handleComputePolicy).Methods(http.MethodPost)
	r.HandleFunc("/policies/{id}/summary", a.handleSummary).Methods(http.MethodGet)
	r.HandleFunc("/policies/{id}/progress", a.handleProgress).Methods(http.MethodGet)
	r.HandleFunc("/policies/{id}/suggestion", a.handleSuggestion).Methods(http.MethodPost)
	r.HandleFunc("/policies/{id}/reroll", a.handleReroll).Methods(http.MethodPost)
	r.HandleFunc("/policies/{id}/validate", a.handleValidate).Methods(http.MethodPost)
	return r
}

// bootstrapResponse is bootstrap's result: the static catalogue plus its
// configured defaults, everything a client needs to build a
// compute_policy request.
type bootstrapResponse struct {
	Buffs         []catalog.Buff `json:"buffs"`
	DefaultTarget float64        `json:"defaultTargetScore"`
	DefaultRefund float64        `json:"defaultExpRefundRatio"`
}

func (a *API) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, bootstrapResponse{
		Buffs:         a.cat.Buffs(),
		DefaultTarget: a.cat.DefaultTarget,
		DefaultRefund: a.cat.DefaultRefund,
	})
}

// computePolicyRequest is compute_policy's request body.
type computePolicyRequest struct {
	Weights       catalog.WeightVector      `json:"buffWeights"`
	TargetScore   float64                   `json:"targetScore"`
	ScorerType    string                    `json:"scorerType"`
	CostWeights   costmodel.Weights         `json:"costWeights"`
	ExpRefund     float64                   `json:"expRefundRatio"`
	BlendUserData bool                      `json:"blendUserData"`
	UserCounts    map[string]map[int]uint64 `json:"userCounts,omitempty"`
}

type computePolicyResponse struct {
	PolicyID string `json:"policyId"`
}

// handleComputePolicy kicks off an async solve and returns its job id
// immediately: a long-running synchronous call from the core's internal
// view, run off the caller's thread behind a deferred-result job rather
// than a blocking HTTP response.
func (a *API) handleComputePolicy(w http.ResponseWriter, r *http.Request) {
	var body computePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON: "+err.Error()))
		return
	}

	cost, err := costmodel.New(body.CostWeights, body.ExpRefund)
	if err != nil {
		writeError(w, err)
		return
	}

	counts := make(map[catalog.BuffID]map[int]uint64, len(body.UserCounts))
	for id, byValue := range body.UserCounts {
		counts[catalog.BuffID(id)] = byValue
	}

	progress := make(chan telemetry.Event, progressBuffer)
	lambdaOpts := lambdasearch.DefaultOptions()
	lambdaOpts.Progress = progress

	req := policycache.Request{
		Weights:       body.Weights,
		Target:        body.TargetScore,
		Scorer:        scorer.Variant(body.ScorerType),
		Cost:          cost,
		BlendUserData: body.BlendUserData,
		UserCounts:    counts,
		LambdaOpts:    lambdaOpts,
	}

	id, err := newJobID()
	if err != nil {
		writeError(w, apperrors.Wrap(err, "generating policy id"))
		return
	}
	j := &job{status: jobRunning, progress: progress}
	a.mu.Lock()
	a.jobs[id] = j
	a.mu.Unlock()

	// The request context ends when this handler returns, so the background
	// solve runs under its own context.
	go func() {
		h, err := a.cache.Compute(context.Background(), req)
		j.finish(h, err)
	}()

	writeJSON(w, http.StatusAccepted, computePolicyResponse{PolicyID: id})
}

func (a *API) lookupJob(r *http.Request) (*job, bool) {
	id := mux.Vars(r)["id"]
	a.mu.RLock()
	defer a.mu.RUnlock()
	j, ok := a.jobs[id]
	return j, ok
}

// handleSummary implements summary(): 200 with the figures once ready,
// 202+Retry-After while still solving, or the terminal error if the solve
// failed.
func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	j, ok := a.lookupJob(r)
	if !ok {
		writeError(w, apperrors.NotReady("no such policy id"))
		return
	}

	status, handle, err := j.snapshot()
	switch status {
	case jobRunning:
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusAccepted)
	case jobFailed:
		writeError(w, err)
	case jobReady:
		summary, serr := handle.Summary()
		if serr != nil {
			writeError(w, serr)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

// handleProgress streams lambda-search iterations over a websocket for as
// long as the job is running, via the ping/pong liveness loop in
// internal/telemetry.
func (a *API) handleProgress(w http.ResponseWriter, r *http.Request) {
	j, ok := a.lookupJob(r)
	if !ok {
		http.Error(w, "no such policy id", http.StatusNotFound)
		return
	}

	client, err := telemetry.Upgrade(w, r, j.progress)
	if err != nil {
		log.Println("progress upgrade:", err)
		return
	}
	if err := client.Sync(); err != nil && !errors.Is(err, telemetry.ErrPongDeadlineExceeded) {
		log.Println("progress sync:", err)
	}
}

type suggestionRequest struct {
	Revealed []policycache.RevealedBuff `json:"revealed"`
}

func (a *API) handleSuggestion(w http.ResponseWriter, r *http.Request) {
	j, ok := a.lookupJob(r)
	if !ok {
		writeError(w, apperrors.NotReady("no such policy id"))
		return
	}
	status, handle, err := j.snapshot()
	if status != jobReady {
		writeError(w, pendingOrFailed(status, err))
		return
	}

	var body suggestionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON: "+err.Error()))
		return
	}

	suggestion, err := handle.Suggest(body.Revealed)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestion)
}

type rerollRequest struct {
	Baseline   [catalog.MaxSlots]policycache.RevealedBuff `json:"baseline"`
	Candidate  []policycache.RevealedBuff                 `json:"candidate,omitempty"`
	TopK       int                                         `json:"topK"`
	RerollCost float64                                     `json:"rerollCost"`
}

// handleReroll implements compute_reroll_policy + query_reroll_recommendation
// in one call: the baseline is already covered by the cached policy table,
// so there is no separate acknowledgement step to perform.
func (a *API) handleReroll(w http.ResponseWriter, r *http.Request) {
	j, ok := a.lookupJob(r)
	if !ok {
		writeError(w, apperrors.NotReady("no such policy id"))
		return
	}
	status, handle, err := j.snapshot()
	if status != jobReady {
		writeError(w, pendingOrFailed(status, err))
		return
	}

	var body rerollRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON: "+err.Error()))
		return
	}

	result, err := reroll.Solve(handle, reroll.Query{
		Baseline:   body.Baseline,
		Candidate:  body.Candidate,
		TopK:       body.TopK,
		RerollCost: body.RerollCost,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type validateRequest struct {
	N       int   `json:"n"`
	Seed    int64 `json:"seed"`
	Workers int   `json:"workers"`
}

// handleValidate runs the optional Monte-Carlo correctness check against an
// already-solved policy; supplemental to the five primary operations,
// exposed since a complete host needs a way to trigger it on demand rather
// than only at test time.
func (a *API) handleValidate(w http.ResponseWriter, r *http.Request) {
	j, ok := a.lookupJob(r)
	if !ok {
		writeError(w, apperrors.NotReady("no such policy id"))
		return
	}
	status, handle, err := j.snapshot()
	if status != jobReady {
		writeError(w, pendingOrFailed(status, err))
		return
	}

	var body validateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, apperrors.InvalidInput("body", "malformed JSON: "+err.Error()))
			return
		}
	}

	view, err := handle.View()
	if err != nil {
		writeError(w, err)
		return
	}

	report, err := montecarlo.Validate(r.Context(), handle, view.Cost, montecarlo.Options{
		N: body.N, Seed: body.Seed, Workers: body.Workers,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func pendingOrFailed(status jobStatus, err error) error {
	if status == jobRunning {
		return apperrors.NotReady("policy is still solving")
	}
	return err
}

func newJobID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("writeJSON encode:", err)
	}
}

// errorResponse mirrors apperrors.Error's caller-facing fields.
type errorResponse struct {
	Kind   string `json:"kind"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Kind: "Internal", Reason: err.Error()})
		return
	}

	status := http.StatusBadRequest
	switch appErr.Kind {
	case apperrors.KindInvalidInput:
		status = http.StatusBadRequest
	case apperrors.KindUnreachableTarget:
		status = http.StatusUnprocessableEntity
	case apperrors.KindNumeric:
		status = http.StatusInternalServerError
	case apperrors.KindCancelled:
		status = http.StatusServiceUnavailable
	case apperrors.KindNotReady:
		status = http.StatusConflict
	}
	writeJSON(w, status, errorResponse{Kind: appErr.Kind.String(), Field: appErr.Field, Reason: appErr.Reason})
}
