// Package model describes the base objects manipulated by darkpan.
//
// The object model for darkpan is composed of:
//
//  Distributions:
//    An archive file published by an author, stored under an author-prefixed path
//    such as J/JE/JEFF/Foo-Bar-1.0.tar.gz. A distribution provides packages and
//    requires other packages (prerequisites).
//
//  Packages:
//    A (name, version) pair provided by exactly one distribution.
//
//  Stacks:
//    A named view of the repository, recording which package versions are registered.
//    Exactly one stack is the default. Every stack is backed by a branch of the same name
//    in the stacks history.
//
//  Registrations:
//    The pinning of a package version onto a stack.
package model
