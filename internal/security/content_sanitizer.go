// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は利用者が投稿した本文を安全なHTMLに変換する。
// 本文はプレーンテキストとして扱い、URLのみをリンク化する。
// 最終出力はbluemondayの許可リストポリシーを通過させる。
package security

import (
	"html"
	"html/template"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"mvdan.cc/xurls/v2"
)

// ContentSanitizerService は投稿本文のサニタイズ機能のインターフェースを定義する。
// Webフロントエンドの投稿一覧と投稿詳細で使用される。
type ContentSanitizerService interface {
	// Sanitize はHTML断片をサニタイズして安全なHTMLを返す。
	// aタグにはtarget="_blank"とrel="noopener noreferrer"が自動付与される。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string

	// RenderText はプレーンテキストの本文をHTMLに変換する。
	// HTML特殊文字はエスケープされ、http/httpsのURLはリンクになり、
	// 改行は<br>に置き換えられる。
	RenderText(text string) template.HTML

	// Links は本文に含まれるhttp/httpsのURLを出現順に返す。
	Links(text string) []string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーとURL抽出用の正規表現を保持する。
type contentSanitizer struct {
	policy *bluemonday.Policy
	links  *regexp.Regexp
}

// compile-time interface check
var _ ContentSanitizerService = (*contentSanitizer)(nil)

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, a, strong, em
//   - aタグ: href属性のみ、http/httpsの絶対URLに限定
//   - aタグ: target="_blank" と rel="noopener noreferrer" を自動付与
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements("p", "br", "strong", "em")

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	links, err := xurls.StrictMatchingScheme(`https?://`)
	if err != nil {
		// 固定パターンのため到達しない
		links = xurls.Strict()
	}

	return &contentSanitizer{
		policy: p,
		links:  links,
	}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}

// RenderText はプレーンテキストの本文をリンク付きHTMLに変換する。
func (s *contentSanitizer) RenderText(text string) template.HTML {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var b strings.Builder
	last := 0
	for _, loc := range s.links.FindAllStringIndex(text, -1) {
		b.WriteString(escapeLines(text[last:loc[0]]))
		link := html.EscapeString(text[loc[0]:loc[1]])
		b.WriteString(`<a href="` + link + `">` + link + `</a>`)
		last = loc[1]
	}
	b.WriteString(escapeLines(text[last:]))

	return template.HTML(s.policy.Sanitize(b.String()))
}

// Links は本文に含まれるURLを返す。
func (s *contentSanitizer) Links(text string) []string {
	return s.links.FindAllString(text, -1)
}

// escapeLines はテキストをエスケープし、改行を<br>に置き換える。
func escapeLines(text string) string {
	return strings.ReplaceAll(html.EscapeString(text), "\n", "<br>")
}
