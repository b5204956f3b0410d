package realtime

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// RoomForMindmap derives the broadcast room key for a document. Rooms are
// identifiers only; they have no object identity or lifecycle.
func RoomForMindmap(mindmapID string) string {
	return "mindmap:" + mindmapID
}

// JoinRequest carries everything a join authorization needs. ShareToken and
// MindmapID are mutually exclusive in practice; the share token wins when
// both are present.
type JoinRequest struct {
	MindmapID  string
	ShareToken string
	// Raw handshake credential, forwarded on authenticated lookups.
	Bearer string
	// Verified identity, empty for anonymous connections.
	UserID string
}

// JoinOutcome is the decision for one join request, computed fresh every
// time and never cached. The zero value is the unresolved case: no room was
// assigned. The wire behavior for unresolved joins is silence; naming the
// case here keeps that silence deliberate.
type JoinOutcome struct {
	Joined  bool
	Room    string
	CanEdit bool
}

// Resolver exchanges join requests for rooms and edit permissions by
// consulting the external document service.
type Resolver struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewResolver(baseURL string, timeout time.Duration, logger *slog.Logger) *Resolver {
	return &Resolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With(slog.String("component", "join_resolver")),
	}
}

// Resolve authorizes a join. Network failures, non-success responses and
// missing identifiers all yield the unresolved outcome; there is no retry.
func (r *Resolver) Resolve(ctx context.Context, req JoinRequest) JoinOutcome {
	if r.baseURL == "" {
		return JoinOutcome{}
	}
	switch {
	case req.ShareToken != "":
		return r.resolveShared(ctx, req.ShareToken)
	case req.MindmapID != "":
		return r.resolveByID(ctx, req)
	default:
		return JoinOutcome{}
	}
}

// resolveShared looks up a publicly shared document. No credential is sent;
// edit rights come solely from the document's public access level.
func (r *Resolver) resolveShared(ctx context.Context, shareToken string) JoinOutcome {
	body, ok := r.get(ctx, r.baseURL+"/mindmaps/public/"+url.PathEscape(shareToken), "")
	if !ok {
		return JoinOutcome{}
	}
	id := gjson.GetBytes(body, "id").String()
	if id == "" {
		return JoinOutcome{}
	}
	return JoinOutcome{
		Joined:  true,
		Room:    RoomForMindmap(id),
		CanEdit: gjson.GetBytes(body, "publicAccessLevel").String() == "edit",
	}
}

// resolveByID looks up a document by id, forwarding the caller's bearer
// credential. Edit is granted to the owner, to collaborators holding an
// editor role, or to anyone when the document is publicly editable.
func (r *Resolver) resolveByID(ctx context.Context, req JoinRequest) JoinOutcome {
	body, ok := r.get(ctx, r.baseURL+"/mindmaps/"+url.PathEscape(req.MindmapID), req.Bearer)
	if !ok {
		return JoinOutcome{}
	}
	id := gjson.GetBytes(body, "id").String()
	if id == "" {
		return JoinOutcome{}
	}

	canEdit := false
	if req.UserID != "" {
		if gjson.GetBytes(body, "mysqlUserId").String() == req.UserID {
			canEdit = true
		} else {
			for _, c := range gjson.GetBytes(body, "collaborators").Array() {
				// Role comparison is exact; the document service emits
				// upper-case role names.
				if c.Get("mysqlUserId").String() == req.UserID && c.Get("role").String() == "EDITOR" {
					canEdit = true
					break
				}
			}
		}
	}
	if !canEdit && gjson.GetBytes(body, "publicAccessLevel").String() == "edit" {
		canEdit = true
	}

	return JoinOutcome{Joined: true, Room: RoomForMindmap(id), CanEdit: canEdit}
}

func (r *Resolver) get(ctx context.Context, u, bearer string) ([]byte, bool) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false
	}
	if bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		r.logger.Debug("Document service lookup failed", slog.String("url", u), slog.Any("error", err))
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.Debug("Document service returned non-success", slog.String("url", u), slog.Int("status", resp.StatusCode))
		return nil, false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, false
	}
	return body, true
}
