package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/egurtak/internal/model"
)

// APIパス（PathPrefixからの相対パス）
const (
	PathLogin    = "/auth/login/"
	PathRegister = "/auth/register/"
	PathPosts    = "/posts/"
)

// multipartのフィールド名
const (
	ImageField = "image"
	PhotoField = "photo"
)

// PostNotFoundMessage は投稿詳細が空リストで返された場合のメッセージ。
const PostNotFoundMessage = "Оголошення не знайдено."

// PostPath は投稿詳細のパスを返す。
func PostPath(id int64) string {
	return fmt.Sprintf("%s%d/", PathPosts, id)
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type registerResponse struct {
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    *model.User `json:"user"`
}

type createPostResponse struct {
	ID      *int64 `json:"id"`
	Message string `json:"message"`
}

// Login はユーザー名とパスワードでログインし、トークンを返す。
func (c *Client) Login(ctx context.Context, username, password string) (*model.LoginResult, error) {
	data, err := c.Do(ctx, http.MethodPost, PathLogin, map[string]any{
		"username": username,
		"password": password,
	}, nil)
	if err != nil {
		return nil, err
	}

	var resp loginResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &model.ShapeError{What: "login response", Reason: err.Error()}
	}
	if resp.Token == "" {
		return nil, &model.ShapeError{What: "login response", Reason: "missing token"}
	}
	return &model.LoginResult{Token: resp.Token, User: resp.User}, nil
}

// Register はアカウントを登録する。PhotoURIが指定された場合はmultipartで送信する。
func (c *Client) Register(ctx context.Context, reg model.Registration) (*model.RegisterResult, error) {
	body := map[string]any{
		"username":    reg.Username,
		"password":    reg.Password,
		"dorm_number": reg.DormNumber,
	}
	var file *Attachment
	if reg.PhotoURI != "" {
		file = &Attachment{FieldName: PhotoField, URI: reg.PhotoURI}
	}

	data, err := c.Do(ctx, http.MethodPost, PathRegister, body, file)
	if err != nil {
		return nil, err
	}

	var resp registerResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &model.ShapeError{What: "register response", Reason: err.Error()}
	}
	return &model.RegisterResult{Message: resp.Message, Token: resp.Token, User: resp.User}, nil
}

// ListPosts は投稿一覧をサーバーの返却順のまま返す。
// レスポンスが配列でない場合は*model.ShapeErrorを返す。
func (c *Client) ListPosts(ctx context.Context) ([]model.Post, error) {
	data, err := c.Do(ctx, http.MethodGet, PathPosts, nil, nil)
	if err != nil {
		return nil, err
	}

	if !isJSONArray(data) {
		return nil, &model.ShapeError{What: "post list", Reason: "not an array"}
	}

	var posts []model.Post
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, &model.ShapeError{What: "post list", Reason: err.Error()}
	}
	return posts, nil
}

// GetPost は投稿詳細を取得する。
// オブジェクトまたは配列（先頭要素を使用）のどちらの形式も受け付ける。
func (c *Client) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	data, err := c.Do(ctx, http.MethodGet, PostPath(id), nil, nil)
	if err != nil {
		return nil, err
	}

	switch {
	case isJSONArray(data):
		var posts []model.Post
		if err := json.Unmarshal(data, &posts); err != nil {
			return nil, &model.ShapeError{What: "post", Reason: err.Error()}
		}
		if len(posts) == 0 {
			return nil, &model.HTTPError{Status: http.StatusNotFound, Message: PostNotFoundMessage}
		}
		return &posts[0], nil
	case isJSONObject(data):
		var post model.Post
		if err := json.Unmarshal(data, &post); err != nil {
			return nil, &model.ShapeError{What: "post", Reason: err.Error()}
		}
		return &post, nil
	default:
		return nil, &model.ShapeError{What: "post", Reason: "neither object nor array"}
	}
}

// CreatePost は投稿を作成する。画像がある場合はimageフィールドでmultipart送信する。
// レスポンスは作成された投稿、またはメッセージのみのどちらも受け付ける。
func (c *Client) CreatePost(ctx context.Context, draft model.Draft) (*model.PostCreated, error) {
	body := map[string]any{
		"title":   draft.Title,
		"content": draft.Content,
	}
	var file *Attachment
	if draft.HasImage() {
		file = &Attachment{FieldName: ImageField, URI: draft.LocalImageURI}
	}

	data, err := c.Do(ctx, http.MethodPost, PathPosts, body, file)
	if err != nil {
		return nil, err
	}
	c.metrics.RecordPostCreated(draft.HasImage())

	if !isJSONObject(data) {
		return &model.PostCreated{}, nil
	}

	var resp createPostResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &model.ShapeError{What: "create post response", Reason: err.Error()}
	}

	result := &model.PostCreated{Message: resp.Message}
	if resp.ID != nil {
		var post model.Post
		if err := json.Unmarshal(data, &post); err != nil {
			return nil, &model.ShapeError{What: "create post response", Reason: err.Error()}
		}
		result.Post = &post
	}
	return result, nil
}

// ResolveURL は投稿のimage_urlのような参照をベースURL基準の絶対URLに解決する。
// 空文字列や解釈できない値はそのまま返す。
func (c *Client) ResolveURL(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if refURL.IsAbs() {
		return ref
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return ref
	}
	return base.ResolveReference(refURL).String()
}

func isJSONArray(data []byte) bool {
	return strings.HasPrefix(string(bytes.TrimSpace(data)), "[")
}

func isJSONObject(data []byte) bool {
	return strings.HasPrefix(string(bytes.TrimSpace(data)), "{")
}
