package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/wdb/iiifgate/internal/gate/domain"
	"github.com/wdb/iiifgate/internal/gate/store"
	"github.com/wdb/iiifgate/pkg/slogx"
)

// SeedFile is the HCL document loaded by SeedService.
//
//	subsystem "hdb" {
//	  allow_anonymous = false
//	  permission      = "view wdb gallery pages"
//	  group           = "hdb-editors"
//	}
//
//	principal "alice" {
//	  id          = 42
//	  permissions = ["view wdb gallery pages"]
//	  groups      = ["hdb-editors"]
//	}
//
//	source "1" {
//	  subsystem = "hdb"
//	}
//
//	page "10" {
//	  source           = 1
//	  image_identifier = "wdb/hdb/doc1/1.ptif"
//	}
//
//	session "abc123" {
//	  data = "uid|i:42;"
//	}
type SeedFile struct {
	Subsystems []SeedSubsystem `hcl:"subsystem,block"`
	Principals []SeedPrincipal `hcl:"principal,block"`
	Sources    []SeedSource    `hcl:"source,block"`
	Pages      []SeedPage      `hcl:"page,block"`
	Sessions   []SeedSession   `hcl:"session,block"`
}

type SeedSubsystem struct {
	Name           string `hcl:"name,label"`
	AllowAnonymous bool   `hcl:"allow_anonymous,optional"`
	Permission     string `hcl:"permission,optional"`
	Group          string `hcl:"group,optional"`
}

type SeedPrincipal struct {
	Name        string   `hcl:"name,label"`
	ID          int64    `hcl:"id"`
	Blocked     bool     `hcl:"blocked,optional"`
	Permissions []string `hcl:"permissions,optional"`
	Groups      []string `hcl:"groups,optional"`
}

type SeedSource struct {
	ID        string `hcl:"id,label"`
	Subsystem string `hcl:"subsystem,optional"`
}

type SeedPage struct {
	ID              string `hcl:"id,label"`
	Source          int64  `hcl:"source,optional"`
	ImageIdentifier string `hcl:"image_identifier,optional"`
}

type SeedSession struct {
	SID  string `hcl:"sid,label"`
	UID  int64  `hcl:"uid,optional"`
	Data string `hcl:"data,optional"`
}

// LoadSeedFile parses an HCL seed file.
func LoadSeedFile(path string) (SeedFile, error) {
	var f SeedFile
	if err := hclsimple.DecodeFile(path, nil, &f); err != nil {
		return SeedFile{}, fmt.Errorf("decode seed file: %w", err)
	}
	return f, nil
}

// ParseSeed parses HCL seed content. filename is only used in diagnostics
// and must end in .hcl.
func ParseSeed(filename string, src []byte) (SeedFile, error) {
	var f SeedFile
	if err := hclsimple.Decode(filename, src, nil, &f); err != nil {
		return SeedFile{}, fmt.Errorf("decode seed: %w", err)
	}
	return f, nil
}

// SeedService upserts fixture data, all or nothing.
type SeedService struct {
	Store store.Store
}

func (s *SeedService) Apply(ctx context.Context, f SeedFile) error {
	l := slogx.FromContext(ctx)

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		for _, sub := range f.Subsystems {
			if err := tx.Subsystems().UpsertSubsystem(ctx, domain.Subsystem{
				Name:           sub.Name,
				AllowAnonymous: sub.AllowAnonymous,
				Permission:     sub.Permission,
				GroupID:        sub.Group,
			}); err != nil {
				return fmt.Errorf("subsystem %q: %w", sub.Name, err)
			}
		}

		for _, p := range f.Principals {
			if err := tx.Principals().UpsertPrincipal(ctx, domain.Principal{
				ID:          p.ID,
				Name:        p.Name,
				Blocked:     p.Blocked,
				Permissions: p.Permissions,
				Groups:      p.Groups,
			}); err != nil {
				return fmt.Errorf("principal %q: %w", p.Name, err)
			}
		}

		for _, src := range f.Sources {
			id, err := parseSeedID(src.ID)
			if err != nil {
				return fmt.Errorf("source %q: %w", src.ID, err)
			}
			if err := tx.Pages().UpsertSource(ctx, id, src.Subsystem); err != nil {
				return fmt.Errorf("source %q: %w", src.ID, err)
			}
		}

		for _, page := range f.Pages {
			id, err := parseSeedID(page.ID)
			if err != nil {
				return fmt.Errorf("page %q: %w", page.ID, err)
			}
			if err := tx.Pages().UpsertPage(ctx, domain.Page{
				ID:              id,
				SourceID:        page.Source,
				ImageIdentifier: page.ImageIdentifier,
			}); err != nil {
				return fmt.Errorf("page %q: %w", page.ID, err)
			}
		}

		now := time.Now()
		for _, sess := range f.Sessions {
			if err := tx.Sessions().PutSession(ctx, domain.RawSession{
				SID:       sess.SID,
				UID:       sess.UID,
				Payload:   []byte(sess.Data),
				Timestamp: now,
			}); err != nil {
				return fmt.Errorf("session %q: %w", sess.SID, err)
			}
		}
		return nil
	})
	if err != nil {
		l.Error("failed to apply seed", slog.Any("err", err))
		return err
	}

	l.Info("seed applied",
		slog.Int("subsystems", len(f.Subsystems)),
		slog.Int("principals", len(f.Principals)),
		slog.Int("pages", len(f.Pages)),
		slog.Int("sessions", len(f.Sessions)),
	)
	return nil
}

func parseSeedID(label string) (int64, error) {
	id, err := strconv.ParseInt(label, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("id must be a positive integer")
	}
	return id, nil
}
