// Package redis implements the vector index over RediSearch: HNSW index
// creation, idempotent entry upserts, and filtered KNN queries via rueidis.
package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/postdeck/retrieval/internal/domain"
)

const (
	entryKeyPart   = "vec:"
	scoreField     = "__vector_score"
	vectorField    = "vector"
	collectionTag  = "collection"
	tenantTag      = "tenant_id"
	distanceMetric = "COSINE"
)

// Config holds connection and index-shape parameters.
type Config struct {
	Addrs           []string
	Username        string
	Password        string
	KeyPrefix       string
	Dimensions      int
	HNSWM           int
	HNSWEFConstruct int
}

// Compile-time check: Client implements domain.VectorIndex.
var _ domain.VectorIndex = (*Client)(nil)

// Client talks to a running RediSearch instance. It is read-mostly and safe
// for concurrent use.
type Client struct {
	client rueidis.Client
	prefix string
	cfg    Config
}

// New connects to the index backend.
func New(cfg Config) (*Client, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Client{client: client, prefix: cfg.KeyPrefix + entryKeyPart, cfg: cfg}, nil
}

// Close shuts down the client.
func (c *Client) Close() {
	c.client.Close()
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	cmd := c.client.B().Ping().Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// EnsureIndex creates the HNSW index if it does not exist yet.
func (c *Client) EnsureIndex(ctx context.Context) error {
	args := []string{
		c.indexName(),
		"ON", "HASH",
		"PREFIX", "1", c.prefix,
		"SCHEMA",
		collectionTag, "TAG",
		tenantTag, "TAG",
		vectorField, "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(c.cfg.Dimensions),
		"DISTANCE_METRIC", distanceMetric,
		"M", strconv.Itoa(c.cfg.HNSWM),
		"EF_CONSTRUCTION", strconv.Itoa(c.cfg.HNSWEFConstruct),
	}

	cmd := c.client.B().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return nil
		}
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Upsert writes index entries. Writing an existing id overwrites it; this
// layer never deletes entries.
func (c *Client) Upsert(ctx context.Context, entries []domain.IndexEntry) error {
	for i := range entries {
		entry := &entries[i]
		scope := entry.Scope()

		fields := map[string]string{
			vectorField:   vectorToBytes(entry.Vector()),
			collectionTag: scope.Collection(),
		}
		// Tenant metadata mirrors the query filter rule: global entries
		// carry no tenant tag at all.
		if scope.Tenanted() {
			fields[tenantTag] = scope.TenantID()
		}

		key := c.entryKey(scope.Collection(), entry.ID())
		cmd := c.client.B().Hset().Key(key).FieldValue()
		for f, v := range fields {
			cmd = cmd.FieldValue(f, v)
		}
		if err := c.client.Do(ctx, cmd.Build()).Error(); err != nil {
			return fmt.Errorf("upsert entry %s: %w", entry.ID(), err)
		}
	}
	return nil
}

// Query runs a filtered nearest-neighbor search and returns matches in
// relevance order with cosine similarity scores.
func (c *Client) Query(
	ctx context.Context, vector []float32, topK int, scope domain.Scope,
) ([]domain.Match, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive")
	}

	args := searchArgs(c.indexName(), vector, topK, scope)
	cmd := c.client.B().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := c.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	return c.parseMatches(raw, scope.Collection())
}

// searchArgs builds the FT.SEARCH argument list for a KNN query. The LIMIT
// clause must be explicit: the server otherwise caps the reply at its default
// of 10 rows regardless of the K in the KNN clause.
func searchArgs(index string, vector []float32, topK int, scope domain.Scope) []string {
	queryStr := fmt.Sprintf("(%s)=>[KNN %d @%s $BLOB]", scopeFilter(scope), topK, vectorField)

	return []string{
		index, queryStr,
		"RETURN", "1", scoreField,
		"LIMIT", "0", strconv.Itoa(topK),
		"PARAMS", "2", "BLOB", vectorToBytes(vector),
		"DIALECT", "2",
	}
}

func (c *Client) indexName() string {
	return c.cfg.KeyPrefix + "vec-idx"
}

func (c *Client) entryKey(collection, id string) string {
	return c.prefix + collection + ":" + id
}

// parseMatches converts the raw FT.SEARCH reply (2-stride: total, key,
// fields, ...) into ordered matches.
func (c *Client) parseMatches(raw []rueidis.RedisMessage, collection string) ([]domain.Match, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	keyPrefix := c.prefix + collection + ":"
	matches := make([]domain.Match, 0, total)

	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		m := domain.Match{ID: strings.TrimPrefix(key, keyPrefix)}
		for j := 0; j+1 < len(fields); j += 2 {
			name, nerr := fields[j].ToString()
			value, verr := fields[j+1].ToString()
			if nerr != nil || verr != nil || name != scoreField {
				continue
			}
			if dist, perr := strconv.ParseFloat(value, 64); perr == nil {
				m.Score = max(0, 1.0-dist) // cosine distance -> similarity, clamped to [0,1]
			}
		}
		matches = append(matches, m)
	}

	return matches, nil
}

// scopeFilter builds the FT.SEARCH pre-filter from the scope. The same rule
// decides which tags were written on upsert, so write and read stay
// symmetric.
func scopeFilter(scope domain.Scope) string {
	filter := fmt.Sprintf("@%s:{%s}", collectionTag, tagEscaper.Replace(scope.Collection()))
	if scope.Tenanted() {
		filter += fmt.Sprintf(" @%s:{%s}", tenantTag, tagEscaper.Replace(scope.TenantID()))
	}
	return filter
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// isRedisErr checks if err is a Redis server error containing substr
// (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)
