package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Post はバックエンドから取得した掲示板の投稿を表す。
// クライアントは既存の投稿を変更しない。
type Post struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	CreatedAt  Timestamp `json:"created_at"`
	DormNumber *int      `json:"dorm_number,omitempty"`
	ImageURL   string    `json:"image_url,omitempty"`
}

// HasImage は投稿に画像URLが含まれるかを返す。
func (p Post) HasImage() bool {
	return strings.TrimSpace(p.ImageURL) != ""
}

// Draft は投稿作成画面が保持する未送信の投稿を表す。
// 送信成功または画面離脱で破棄される。
type Draft struct {
	Title         string
	Content       string
	LocalImageURI string // メディアピッカーが返したローカルURI（任意）
}

// HasImage は添付画像が選択されているかを返す。
func (d Draft) HasImage() bool {
	return d.LocalImageURI != ""
}

// PostCreated は投稿作成APIの応答を表す。
// バックエンドによって作成済みの投稿か、メッセージのみが返される。
type PostCreated struct {
	Post    *Post
	Message string
}

// timestampLayouts はバックエンドが返しうる日時フォーマット。
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02",
}

// Timestamp はcreated_atのような任意項目の日時を表す。
// 解析できない値やnullはゼロ値として扱い、投稿一覧全体を失敗させない。
type Timestamp struct {
	time.Time
}

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		t.Time = time.Time{}
		return nil
	}

	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	t.Time = time.Time{}
	return nil
}

// MarshalJSON はjson.Marshalerを実装する。
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}
