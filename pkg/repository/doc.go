// Copyright © 2018 One Concern

/*
Package repository composes the stores of a distribution repository and keeps them consistent.

A repository holds:

  - the metadata of distributions, packages, stacks and registrations (pkg/metadata)
  - the archives of distributions, under authors/id (pkg/storage)
  - the history of stacks, one branch per stack (pkg/vcs)

Mutating operations hold the exclusive repository lock for their whole duration. They always
write metadata first: a failure leaves the repository either fully consistent, or with a metadata
record whose archive is missing. The latter is reported as a partial ingest failure, and a recovery
marker lets Recover complete the operation later.

Layout of a repository at root:

	<root>/authors/id/A/AU/AUTHOR/Dist-1.0.tar.gz   archives
	<root>/.darkpan/config.yaml                     repository configuration
	<root>/.darkpan/db/                             metadata
	<root>/.darkpan/stacks/                         stacks history, with modules/02packages.details.txt
	<root>/.darkpan/cache/                          upstream indexes
	<root>/.darkpan/recovery/                       recovery markers
	<root>/.darkpan/tmp/                            downloads in progress
	<root>/.darkpan/lock                            exclusive lock
*/
package repository
