package git

import (
	"context"
	"strings"

	"github.com/oneconcern/monorel/pkg/model"
)

const (
	recordSep = "\x1e"
	fieldSep  = "\x1f"

	// one record per commit: hash, parents, author name, author email, raw body, then --name-only file list
	logFormat = "--format=" + recordSep + "%H" + fieldSep + "%P" + fieldSep + "%an" + fieldSep + "%ae" + fieldSep + "%B" + fieldSep
)

// Log lists the commits of a revision range (e.g. "core@1.2.0..HEAD"), newest first,
// with the files each commit touches. When paths are given, only commits touching them are listed.
func (r *Repository) Log(ctx context.Context, revRange string, paths ...string) ([]model.Commit, error) {
	args := []string{"log", logFormat, "--name-only", "--no-renames", revRange, "--"}
	args = append(args, paths...)
	out, err := r.Run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return parseLog(out), nil
}

func parseLog(out string) []model.Commit {
	var commits []model.Commit
	for _, record := range strings.Split(out, recordSep) {
		if strings.TrimSpace(record) == "" {
			continue
		}
		fields := strings.SplitN(record, fieldSep, 6)
		if len(fields) < 5 {
			continue
		}
		commit := model.Commit{
			ID:      strings.TrimSpace(fields[0]),
			Parents: strings.Fields(fields[1]),
			Author:  model.Identity{Name: fields[2], Email: fields[3]},
			Message: strings.TrimSpace(fields[4]),
		}
		if len(fields) == 6 {
			commit.Files = lines(fields[5])
		}
		commits = append(commits, commit)
	}
	return commits
}
