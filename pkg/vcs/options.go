// Copyright © 2018 One Concern

package vcs

import "go.uber.org/zap"

const (
	defaultUsername      = "darkpan"
	defaultEmailDomain   = "darkpan.local"
	defaultInitialCommit = "Initial commit"
)

// Option for the version control store
type Option func(*Repository)

// Logger for the version control store
func Logger(l *zap.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.l = l
		}
	}
}

// EmailDomain used to build committer emails from user names
func EmailDomain(domain string) Option {
	return func(r *Repository) {
		if domain != "" {
			r.emailDomain = domain
		}
	}
}

// CommitOption sets the properties of a commit
type CommitOption func(*commitOptions)

type commitOptions struct {
	username string
	message  string
	orphan   bool
}

// Username of the author of the commit
func Username(name string) CommitOption {
	return func(o *commitOptions) {
		if name != "" {
			o.username = name
		}
	}
}

// Message of the commit
func Message(msg string) CommitOption {
	return func(o *commitOptions) {
		o.message = msg
	}
}

// Orphan commits have no parent. They may only be made on a branch without history.
func Orphan(orphan bool) CommitOption {
	return func(o *commitOptions) {
		o.orphan = orphan
	}
}
