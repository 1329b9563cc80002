package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// qdrantEngine drives a local Qdrant vector store. Qdrant ships no client
// binary, so commands and the data workflow go through its HTTP API on the
// primary port; the secondary port carries gRPC. A Qdrant "database" is a
// collection, and dumps are collection snapshots.
type qdrantEngine struct {
	baseServer
	http *http.Client
}

func newQdrant() *qdrantEngine {
	return &qdrantEngine{
		baseServer: baseServer{kind: KindQdrant, serverBinary: "qdrant"},
		http:       &http.Client{Timeout: 5 * time.Minute},
	}
}

func (e *qdrantEngine) Start(ctx context.Context, cfg Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	// Qdrant is configured through environment variables rather than flags.
	env := e.spawnEnv(cfg)
	env["QDRANT__SERVICE__HOST"] = "127.0.0.1"
	env["QDRANT__SERVICE__HTTP_PORT"] = strconv.Itoa(cfg.Port)
	env["QDRANT__SERVICE__GRPC_PORT"] = strconv.Itoa(cfg.HTTPPort)
	env["QDRANT__STORAGE__STORAGE_PATH"] = cfg.DataDir
	return e.startServerEnv(ctx, cfg, nil, env, e.Ready(cfg))
}

func (e *qdrantEngine) Stop(_ context.Context, cfg Config) error {
	return e.stopServer(cfg)
}

func (e *qdrantEngine) ConnectionString(cfg Config, database string) string {
	base := fmt.Sprintf("http://%s", cfg.Address())
	if database == "" {
		database = cfg.Database
	}
	if database != "" {
		return base + "/collections/" + database
	}
	return base
}

func (e *qdrantEngine) baseURL(cfg Config) string {
	return fmt.Sprintf("http://%s", cfg.Address())
}

// RunCommand issues an HTTP request against the API: args are METHOD, PATH,
// and an optional JSON body. The HTTP status class maps onto the exit
// status, keeping the contract uniform with binary-backed engines.
func (e *qdrantEngine) RunCommand(ctx context.Context, cfg Config, args []string) (CommandResult, error) {
	if len(args) < 2 {
		return CommandResult{}, NewValidationError("qdrant commands take METHOD PATH [BODY]", nil)
	}
	method, path := strings.ToUpper(args[0]), args[1]
	var body io.Reader
	if len(args) > 2 {
		body = strings.NewReader(args[2])
	}

	req, err := http.NewRequestWithContext(ctx, method, e.baseURL(cfg)+path, body)
	if err != nil {
		return CommandResult{}, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return CommandResult{}, fmt.Errorf("qdrant request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(resp.Body)
	result := CommandResult{Stdout: string(payload)}
	if resp.StatusCode >= 400 {
		result.Status = 1
		result.Stderr = resp.Status
	}
	return result, nil
}

func (e *qdrantEngine) RunCommandStreaming(ctx context.Context, cfg Config, args []string) (int, error) {
	res, err := e.RunCommand(ctx, cfg, args)
	if err != nil {
		return -1, err
	}
	fmt.Fprintln(os.Stdout, res.Stdout)
	return res.Status, nil
}

func (e *qdrantEngine) Ready(cfg Config) Probe {
	return HTTPProbe{URL: e.baseURL(cfg) + "/healthz"}
}

func (e *qdrantEngine) ServerVersion(ctx context.Context, cfg Config) (string, error) {
	res, err := e.RunCommand(ctx, cfg, []string{"GET", "/"})
	if err != nil {
		return "", err
	}
	var info struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal([]byte(res.Stdout), &info); err != nil || info.Version == "" {
		return "", fmt.Errorf("no version in qdrant root response")
	}
	return info.Version, nil
}

// Dump creates a snapshot of the collection on the source instance and
// downloads it.
func (e *qdrantEngine) Dump(ctx context.Context, source, database, outFile string) error {
	base := strings.TrimRight(source, "/")
	createURL := fmt.Sprintf("%s/collections/%s/snapshots", base, database)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, createURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build snapshot request: %w", err)
	}
	resp, err := e.http.Do(req)
	if err != nil {
		return fmt.Errorf("snapshot creation failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("snapshot creation failed: %s", resp.Status)
	}

	var created struct {
		Result struct {
			Name string `json:"name"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return fmt.Errorf("failed to decode snapshot response: %w", err)
	}

	dlURL := fmt.Sprintf("%s/collections/%s/snapshots/%s", base, database, created.Result.Name)
	dlReq, err := http.NewRequestWithContext(ctx, http.MethodGet, dlURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", err)
	}
	dlResp, err := e.http.Do(dlReq)
	if err != nil {
		return fmt.Errorf("snapshot download failed: %w", err)
	}
	defer dlResp.Body.Close()
	if dlResp.StatusCode >= 400 {
		return fmt.Errorf("snapshot download failed: %s", dlResp.Status)
	}

	out, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, dlResp.Body); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Restore uploads a snapshot into the named collection, replacing its data.
func (e *qdrantEngine) Restore(ctx context.Context, cfg Config, _, database, dumpFile string) error {
	f, err := os.Open(dumpFile)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("snapshot", "snapshot")
	if err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finish upload form: %w", err)
	}

	uploadURL := fmt.Sprintf("%s/collections/%s/snapshots/upload?priority=snapshot", e.baseURL(cfg), database)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &buf)
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.http.Do(req)
	if err != nil {
		return fmt.Errorf("snapshot upload failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("snapshot upload failed: %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}
	return nil
}

// CopyDatabase snapshots a local collection and re-uploads it under the new
// collection name.
func (e *qdrantEngine) CopyDatabase(ctx context.Context, cfg Config, from, to string) error {
	tmp, err := os.CreateTemp("", "dbnest-copy-*.snapshot")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	if err := e.Dump(ctx, e.baseURL(cfg), from, tmpPath); err != nil {
		return err
	}
	return e.Restore(ctx, cfg, from, to, tmpPath)
}
