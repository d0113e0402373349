package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/pagesim/sim"
	"github.com/inference-sim/pagesim/sim/fleet"
)

// maxBodyBytes bounds request bodies; imported snapshots are the largest.
const maxBodyBytes = 32 << 20

// server exposes a fleet over HTTP.
type server struct {
	fleet   *fleet.Fleet
	metrics *serviceMetrics
}

func newServer(f *fleet.Fleet) *server {
	s := &server{fleet: f, metrics: newServiceMetrics()}
	f.SetObserver(s.metrics)
	return s
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /train", s.handleTrain)
	mux.HandleFunc("POST /train-all", s.handleTrainAll)
	mux.HandleFunc("POST /predict", s.handlePredict)
	mux.HandleFunc("POST /access", s.handleAccess)
	mux.HandleFunc("POST /access-all", s.handleAccessAll)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /stats/{model}", s.handleFamilyStats)
	mux.HandleFunc("POST /reset", s.handleReset)
	mux.HandleFunc("POST /reset/{model}", s.handleResetFamily)
	mux.HandleFunc("POST /configure", s.handleConfigure)
	mux.HandleFunc("GET /export", s.handleExport)
	mux.HandleFunc("POST /import", s.handleImport)
	mux.HandleFunc("POST /compare", s.handleCompare)
	mux.HandleFunc("POST /ml-evaluation", s.handleEvaluate)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /ws", s.handleStream)
	return mux
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func statusFor(err error) int {
	switch sim.KindOf(err) {
	case sim.KindInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logrus.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	} else {
		logrus.Debugf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: sim.KindOf(err).String()})
}

// decodeBody decodes a JSON body into v. An empty body leaves v unchanged.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return sim.InvalidRequest("decode request", "malformed JSON body: %v", err)
	}
	return nil
}

type trainRequest struct {
	Model     string       `json:"model"`
	Sequences [][]sim.Page `json:"sequences"`
}

type trainAllRequest struct {
	Sequences        [][]sim.Page `json:"sequences"`
	WorkloadType     string       `json:"workloadType"`
	ResetAccumulated bool         `json:"resetAccumulated"`
}

type modelRequest struct {
	Model string `json:"model"`
}

// accessRequest is shared by /access, /access-all and the stream. Absent
// fields default to process P1, page 0.
type accessRequest struct {
	Model      string `json:"model"`
	ProcessID  string `json:"processId"`
	PageNumber int    `json:"pageNumber"`
}

func (a accessRequest) page() sim.Page { return sim.NewPage(a.ProcessID, a.PageNumber) }

type frameCountRequest struct {
	FrameCount int `json:"frameCount"`
}

type sequenceRequest struct {
	Sequence   []sim.Page `json:"sequence"`
	FrameCount int        `json:"frameCount"`
}

func requireModel(op, model string) error {
	if model == "" {
		return sim.InvalidRequest(op, "model is required")
	}
	return nil
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "pagesim",
		"models":  s.fleet.Families(),
	})
}

func (s *server) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := requireModel("train", req.Model); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.fleet.Train(req.Model, req.Sequences)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"model":      req.Model,
		"metrics":    res.Metrics,
		"modelStats": res.ModelStats,
	})
}

func (s *server) handleTrainAll(w http.ResponseWriter, r *http.Request) {
	var req trainAllRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.fleet.TrainAll(req.Sequences, req.WorkloadType, req.ResetAccumulated)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "success",
		"results":        out.Results,
		"cumulativeInfo": out.Cumulative,
	})
}

func (s *server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req modelRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := requireModel("predict", req.Model); err != nil {
		writeError(w, r, err)
		return
	}
	ms, err := s.fleet.ModelStats(req.Model)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"model": req.Model, "stats": ms})
}

func (s *server) handleAccess(w http.ResponseWriter, r *http.Request) {
	var req accessRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := requireModel("access", req.Model); err != nil {
		writeError(w, r, err)
		return
	}
	rep, err := s.fleet.Access(req.Model, req.page())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *server) handleAccessAll(w http.ResponseWriter, r *http.Request) {
	var req accessRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.fleet.AccessAll(req.page())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// cumulativeStats is the "_cumulative" entry of GET /stats.
type cumulativeStats struct {
	WorkloadType         *string             `json:"workloadType"`
	AccumulatedSequences int                 `json:"accumulatedSequences"`
	TotalSamples         int                 `json:"totalSamples"`
	TrainingHistory      []sim.SessionRecord `json:"trainingHistory"`
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	ov := s.fleet.Stats()
	out := make(map[string]any, len(ov.Families)+1)
	for name, fs := range ov.Families {
		out[name] = fs
	}
	out["_cumulative"] = cumulativeStats{
		WorkloadType:         ov.Cumulative.CurrentWorkloadType,
		AccumulatedSequences: len(ov.Cumulative.AccumulatedSequences),
		TotalSamples:         ov.Cumulative.TotalSamples,
		TrainingHistory:      ov.Cumulative.TrainingHistory,
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleFamilyStats(w http.ResponseWriter, r *http.Request) {
	d, err := s.fleet.FamilyStats(r.PathValue("model"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"model": d.Family, "stats": d})
}

func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req frameCountRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.fleet.Reset(req.FrameCount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"message":    "All models and accumulated data reset",
		"frameCount": n,
	})
}

func (s *server) handleResetFamily(w http.ResponseWriter, r *http.Request) {
	var req frameCountRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	model := r.PathValue("model")
	n, err := s.fleet.ResetFamily(model, req.FrameCount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"message":    fmt.Sprintf("%s model reset", model),
		"frameCount": n,
	})
}

func (s *server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	var req frameCountRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.fleet.Configure(req.FrameCount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"configuration": map[string]any{
			"frameCount": n,
			"models":     s.fleet.Families(),
		},
	})
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.fleet.Export()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *server) handleImport(w http.ResponseWriter, r *http.Request) {
	var snaps map[string]*sim.Snapshot
	if err := decodeBody(w, r, &snaps); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.fleet.Import(snaps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.metrics.observeImport(res.Imported)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"imported": res.Imported,
		"ignored":  res.Ignored,
	})
}

func (s *server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req sequenceRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	results, err := s.fleet.Compare(r.Context(), req.Sequence, req.FrameCount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sequenceLength": len(req.Sequence),
		"frameCount":     s.frameCount(req.FrameCount),
		"results":        results,
	})
}

// evaluationEntry is one row of the /ml-evaluation table.
type evaluationEntry struct {
	Model string `json:"model"`
	sim.Evaluation
}

func (s *server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req sequenceRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	results, err := s.fleet.Evaluate(r.Context(), req.Sequence, req.FrameCount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	evals := make([]evaluationEntry, len(results))
	for i, res := range results {
		evals[i] = evaluationEntry{Model: res.Family, Evaluation: res.Evaluation}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"evaluations":    evals,
		"sequenceLength": len(req.Sequence),
		"frameCount":     s.frameCount(req.FrameCount),
	})
}

// frameCount reports the frame count a comparison actually used.
func (s *server) frameCount(requested int) int {
	if requested > 0 {
		return requested
	}
	return s.fleet.DefaultFrameCount()
}
