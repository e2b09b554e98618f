package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"sort"
	"strings"

	"gitlab.com/dirk.krummacker/beetagged/internal/apperr"
	"gitlab.com/dirk.krummacker/beetagged/internal/merge"
	"gitlab.com/dirk.krummacker/beetagged/internal/normalize"
	"gitlab.com/dirk.krummacker/beetagged/pkg/model"
	"golang.org/x/sync/errgroup"
)

// Upload is one uploaded export file. Label is the source label of its contacts: linkedin for a
// single export, connections and contacts for the two files of a full LinkedIn export.
type Upload struct {
	Label       string
	Filename    string
	ContentType string
	Data        []byte
}

// uploadOrder processes Connections before Contacts so that connection data is kept when both
// files carry a value.
var uploadOrder = map[string]int{
	model.SourceLinkedIn:    0,
	model.SourceConnections: 0,
	model.SourceContacts:    1,
}

// ValidateUpload checks type and size of an upload before it is parsed. A file is accepted if its
// name ends in .csv or it is declared as text/csv.
func ValidateUpload(u Upload, maxBytes int64) error {
	if _, ok := uploadOrder[u.Label]; !ok {
		return fmt.Errorf("%w: unknown upload label %q", apperr.ErrInvalid, u.Label)
	}
	mediaType, _, _ := mime.ParseMediaType(u.ContentType)
	if !strings.EqualFold(filepath.Ext(u.Filename), ".csv") && mediaType != "text/csv" {
		return fmt.Errorf("%w: %s", apperr.ErrUnsupportedFile, u.Filename)
	}
	if maxBytes > 0 && int64(len(u.Data)) > maxBytes {
		return fmt.Errorf("%w: %s has %d bytes", apperr.ErrTooLarge, u.Filename, len(u.Data))
	}
	return nil
}

// ImportCSV imports LinkedIn export files. All uploads are validated before any of them is parsed.
// Rows without a name are skipped.
func (p *Pipeline) ImportCSV(ctx context.Context, uploads []Upload) (*model.ImportResult, error) {
	if len(uploads) == 0 {
		return nil, fmt.Errorf("%w: no file uploaded", apperr.ErrInvalid)
	}
	for _, u := range uploads {
		if err := ValidateUpload(u, p.maxUploadBytes); err != nil {
			return nil, err
		}
	}
	if err := p.ping(ctx); err != nil {
		return nil, err
	}

	ordered := append([]Upload(nil), uploads...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return uploadOrder[ordered[i].Label] < uploadOrder[ordered[j].Label]
	})

	batch := merge.NewBatch(p.logger)
	skipped := 0
	for _, u := range ordered {
		table, err := p.resolver.Read(u.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", apperr.ErrInvalid, u.Filename, err)
		}
		for _, row := range table.Rows {
			candidate, ok := normalize.FromRow(row, table.Columns, u.Label)
			if !ok || !batch.Merge(merge.Entry{Contact: candidate.Contact}) {
				skipped++
			}
		}
		p.logger.Debug("parsed upload",
			slog.String("file", u.Filename),
			slog.String("label", u.Label),
			slog.Int("rows", len(table.Rows)))
	}
	return p.finish(ctx, batch, skipped, "LinkedIn")
}

// ImportProfiles imports profile documents obtained from an identity provider. An empty label
// means facebook.
func (p *Pipeline) ImportProfiles(ctx context.Context, profiles []model.Profile, label string) (*model.ImportResult, error) {
	if label == "" {
		label = model.SourceFacebook
	}
	if err := p.ping(ctx); err != nil {
		return nil, err
	}
	batch, skipped := p.profileBatch(profiles, label)
	return p.finish(ctx, batch, skipped, "Facebook")
}

// ImportFacebook imports the friends of the token's user. If the friends list cannot be fetched
// the import succeeds with nothing imported. Friends whose profile cannot be fetched are skipped.
func (p *Pipeline) ImportFacebook(ctx context.Context, token string) (*model.ImportResult, error) {
	if p.profiles == nil {
		return nil, fmt.Errorf("%w: no identity provider configured", apperr.ErrInvalid)
	}
	if err := p.ping(ctx); err != nil {
		return nil, err
	}
	friends, err := p.profiles.Friends(ctx, token)
	if err != nil {
		p.logger.Warn("fetching friends failed", slog.String("error", err.Error()))
		return &model.ImportResult{
			Success: true,
			Message: "No Facebook friends found or insufficient permissions",
		}, nil
	}

	fetched := make([]*model.Profile, len(friends))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, friend := range friends {
		if friend.ID == "" {
			continue
		}
		g.Go(func() error {
			profile, err := p.profiles.Profile(gctx, token, friend.ID)
			if err != nil {
				p.logger.Warn("fetching profile failed",
					slog.String("id", friend.ID), slog.String("error", err.Error()))
				return nil
			}
			fetched[i] = &profile
			return nil
		})
	}
	// Failed fetches are logged and skipped, so no goroutine returns an error.
	_ = g.Wait()

	profiles := make([]model.Profile, 0, len(fetched))
	failed := 0
	for _, profile := range fetched {
		if profile == nil {
			failed++
			continue
		}
		profiles = append(profiles, *profile)
	}
	batch, skipped := p.profileBatch(profiles, model.SourceFacebook)
	return p.finish(ctx, batch, skipped+failed, "Facebook")
}

func (p *Pipeline) profileBatch(profiles []model.Profile, label string) (*merge.Batch, int) {
	batch := merge.NewBatch(p.logger)
	skipped := 0
	for _, profile := range profiles {
		candidate, ok := normalize.FromProfile(profile, label)
		if !ok || !batch.Merge(merge.Entry{Contact: candidate.Contact, School: candidate.School}) {
			skipped++
		}
	}
	return batch, skipped
}

// finish commits the batch and builds the import result.
func (p *Pipeline) finish(ctx context.Context, batch *merge.Batch, skipped int, provider string) (*model.ImportResult, error) {
	_, stats, err := p.commit(ctx, batch)
	if err != nil {
		p.logger.Error("import commit failed",
			slog.Int("inserted", stats.inserted),
			slog.Int("updated", stats.updated),
			slog.String("error", err.Error()))
		return nil, err
	}
	result := &model.ImportResult{
		Success:  true,
		Count:    stats.inserted + stats.updated,
		Inserted: stats.inserted,
		Updated:  stats.updated,
		Skipped:  skipped,
	}
	result.Message = fmt.Sprintf("Successfully imported %d contacts from %s", result.Count, provider)
	if total, err := p.count(ctx); err == nil {
		result.TotalContacts = &total
	} else {
		p.logger.Warn("counting contacts failed", slog.String("error", err.Error()))
	}
	p.logger.Info("import finished",
		slog.String("provider", provider),
		slog.Int("inserted", result.Inserted),
		slog.Int("updated", result.Updated),
		slog.Int("skipped", result.Skipped))
	return result, nil
}
