package model

import (
	"strings"
	"unicode/utf8"
)

// User は認証APIが返すユーザー情報を表す。
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// LoginResult はログインAPIの応答を表す。
// tokenのみを正規のフィールドとして扱う。
type LoginResult struct {
	Token string `json:"token"`
	User  *User  `json:"user,omitempty"`
}

// Registration は新規登録の入力値を表す。
type Registration struct {
	Username   string
	Password   string
	DormNumber int
	PhotoURI   string // 学生証写真のローカルURI（任意）
}

// RegisterResult は新規登録APIの応答を表す。
// バックエンドによってはtokenを同時に返す。
type RegisterResult struct {
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
	User    *User  `json:"user,omitempty"`
}

// Profile はプロフィール画面に表示する情報を表す。
// 現在はバックエンドに対応するエンドポイントがなく、固定値を表示する。
type Profile struct {
	Username   string
	DormNumber string
	PhotoURL   string
}

// PlaceholderProfile はプロフィール画面の固定表示値を返す。
func PlaceholderProfile() Profile {
	return Profile{
		Username:   "Студент",
		DormNumber: "11",
	}
}

// Initial はアバターに表示するユーザー名の頭文字を返す。
// ユーザー名が空の場合は"?"を返す。
func (p Profile) Initial() string {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(p.Username))
	if r == utf8.RuneError {
		return "?"
	}
	return strings.ToUpper(string(r))
}
