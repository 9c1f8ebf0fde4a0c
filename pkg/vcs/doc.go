// Copyright © 2018 One Concern

/*
Package vcs keeps the history of stacks: every stack is a branch, and every change
to the registrations of a stack is a commit on that branch.

The history is a git repository managed with go-git. The very first branch has no ancestry
and is created explicitly with CreateInitialBranch. Other branches are forked from an existing one.
*/
package vcs
