package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/procendp/stenodesk/internal/models"
)

// Store is the relational surface of the reconciliation jobs.
type Store interface {
	FileRows(ctx context.Context) ([]FileRow, error)
	// IsOrphanNow re-reads a single row's reference state. Used as the
	// last check right before a Type C delete.
	IsOrphanNow(ctx context.Context, fileID uint) (bool, error)
	DeleteFileRow(ctx context.Context, fileID uint) error

	TemporaryRequestsBefore(ctx context.Context, cutoff time.Time) ([]models.Request, error)
	FilesOfRequest(ctx context.Context, requestRow uint) ([]models.File, error)
	TranscriptFileOf(ctx context.Context, req *models.Request) (*models.File, error)
	DeleteRequestRow(ctx context.Context, requestRow uint) error

	// UnattachedFilesBefore lists File rows with no request created
	// before the cutoff (abandoned in-progress uploads).
	UnattachedFilesBefore(ctx context.Context, cutoff time.Time) ([]FileRow, error)
}

// ObjectStore is the object-store surface: a full listing and a
// single-attempt delete.
type ObjectStore interface {
	List(ctx context.Context) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

type Config struct {
	// UploadGrace protects fresh blobs (Type A) and fresh unattached
	// rows from deletion.
	UploadGrace time.Duration
	// TempRetention is the age at which unconfirmed submissions expire.
	TempRetention time.Duration
	// Interval between runs in loop mode.
	Interval time.Duration
	// DryRun analyzes and logs without deleting.
	DryRun bool
}

// Stats aggregates one run's outcome. Failures are counted, never
// propagated: partial failure is the expected steady state here.
type Stats struct {
	ObjectsDeleted  int
	RowsDeleted     int
	OrphansDeleted  int
	RequestsExpired int
	UploadsExpired  int
	Failures        int
}

type Service struct {
	store   Store
	objects ObjectStore
	cfg     Config
	log     *logrus.Logger
	now     func() time.Time
	wg      sync.WaitGroup
}

func NewService(store Store, objects ObjectStore, cfg Config, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.UploadGrace == 0 {
		cfg.UploadGrace = 6 * time.Hour
	}
	if cfg.TempRetention == 0 {
		cfg.TempRetention = 24 * time.Hour
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	return &Service{store: store, objects: objects, cfg: cfg, log: log, now: time.Now}
}

// Analyze produces a classified snapshot without acting on it.
func (s *Service) Analyze(ctx context.Context) (Report, error) {
	objects, err := s.objects.List(ctx)
	if err != nil {
		return Report{}, err
	}
	rows, err := s.store.FileRows(ctx)
	if err != nil {
		return Report{}, err
	}
	rep := Classify(objects, rows)
	s.log.WithFields(logrus.Fields{
		"matched":    len(rep.Matched),
		"type_a":     len(rep.TypeA),
		"type_b":     len(rep.TypeB),
		"type_c":     len(rep.TypeC),
		"referenced": len(rep.Referenced),
	}).Info("orphan analysis")
	return rep, nil
}

// CleanOrphanObjects deletes blob-only orphans older than the grace
// window (Type A).
func (s *Service) CleanOrphanObjects(ctx context.Context, rep Report, stats *Stats) {
	for _, obj := range rep.EligibleTypeA(s.now(), s.cfg.UploadGrace) {
		if s.cfg.DryRun {
			s.log.WithField("key", obj.Key).Info("would delete orphan object")
			continue
		}
		if err := s.objects.Delete(ctx, obj.Key); err != nil {
			stats.Failures++
			s.log.WithError(err).WithField("key", obj.Key).Error("orphan object delete failed")
			continue
		}
		stats.ObjectsDeleted++
		s.log.WithField("key", obj.Key).Warn("orphan object deleted")
	}
}

// CleanDanglingRows removes File rows whose object is gone (Type B).
// The blob no longer exists, so only the relational side is touched.
func (s *Service) CleanDanglingRows(ctx context.Context, rep Report, stats *Stats) {
	for _, row := range rep.TypeB {
		if s.cfg.DryRun {
			s.log.WithField("key", row.ObjectKey).Info("would delete dangling row")
			continue
		}
		if err := s.store.DeleteFileRow(ctx, row.ID); err != nil {
			stats.Failures++
			s.log.WithError(err).WithField("file_id", row.ID).Error("dangling row delete failed")
			continue
		}
		stats.RowsDeleted++
	}
}

// CleanUnreferencedFiles removes Type C orphans: rows present in both
// stores that nothing references. The reference state is re-checked
// immediately before each delete so a request that attached itself
// after classification keeps its file; delivered transcripts are
// protected by the same check.
func (s *Service) CleanUnreferencedFiles(ctx context.Context, rep Report, stats *Stats) {
	for _, row := range rep.TypeC {
		if s.cfg.DryRun {
			s.log.WithField("key", row.ObjectKey).Info("would delete unreferenced file")
			continue
		}
		orphan, err := s.store.IsOrphanNow(ctx, row.ID)
		if err != nil {
			stats.Failures++
			s.log.WithError(err).WithField("file_id", row.ID).Error("orphan re-check failed")
			continue
		}
		if !orphan {
			s.log.WithField("file_id", row.ID).Info("skipped: row gained a reference")
			continue
		}
		if err := s.objects.Delete(ctx, row.ObjectKey); err != nil {
			// Logged only. The row delete proceeds and a later run
			// sees the blob as Type A.
			s.log.WithError(err).WithField("key", row.ObjectKey).Error("object delete failed")
		}
		if err := s.store.DeleteFileRow(ctx, row.ID); err != nil {
			stats.Failures++
			s.log.WithError(err).WithField("file_id", row.ID).Error("file row delete failed")
			continue
		}
		stats.OrphansDeleted++
	}
}

// ExpireTemporaryRequests deletes unconfirmed submissions past the
// retention window along with their attachments and transcripts.
func (s *Service) ExpireTemporaryRequests(ctx context.Context, stats *Stats) {
	cutoff := s.now().Add(-s.cfg.TempRetention)
	reqs, err := s.store.TemporaryRequestsBefore(ctx, cutoff)
	if err != nil {
		stats.Failures++
		s.log.WithError(err).Error("temporary request lookup failed")
		return
	}
	for i := range reqs {
		req := &reqs[i]
		if s.cfg.DryRun {
			s.log.WithField("request_id", req.RequestID).Info("would expire temporary request")
			continue
		}

		attachments, err := s.store.FilesOfRequest(ctx, req.ID)
		if err != nil {
			stats.Failures++
			s.log.WithError(err).WithField("request_id", req.RequestID).Error("attachment lookup failed")
		}
		if transcript, err := s.store.TranscriptFileOf(ctx, req); err == nil && transcript != nil {
			attachments = append(attachments, *transcript)
		}
		for _, f := range attachments {
			if err := s.objects.Delete(ctx, f.ObjectKey); err != nil {
				s.log.WithError(err).WithField("key", f.ObjectKey).Error("object delete failed")
			}
		}

		if err := s.store.DeleteRequestRow(ctx, req.ID); err != nil {
			stats.Failures++
			s.log.WithError(err).WithField("request_id", req.RequestID).Error("request delete failed")
			continue
		}
		stats.RequestsExpired++
	}
}

// ExpireUnattachedUploads deletes File rows (and blobs) that were
// uploaded but never attached to a request within the grace window.
func (s *Service) ExpireUnattachedUploads(ctx context.Context, stats *Stats) {
	cutoff := s.now().Add(-s.cfg.UploadGrace)
	rows, err := s.store.UnattachedFilesBefore(ctx, cutoff)
	if err != nil {
		stats.Failures++
		s.log.WithError(err).Error("unattached file lookup failed")
		return
	}
	for _, row := range rows {
		// Transcripts live with request=nil too; never expire them.
		if row.TranscriptRefs > 0 {
			continue
		}
		if s.cfg.DryRun {
			s.log.WithField("key", row.ObjectKey).Info("would expire unattached upload")
			continue
		}
		if err := s.objects.Delete(ctx, row.ObjectKey); err != nil {
			s.log.WithError(err).WithField("key", row.ObjectKey).Error("object delete failed")
		}
		if err := s.store.DeleteFileRow(ctx, row.ID); err != nil {
			stats.Failures++
			s.log.WithError(err).WithField("file_id", row.ID).Error("file row delete failed")
			continue
		}
		stats.UploadsExpired++
	}
}

// Run performs one full pass: analyze, then every cleanup job.
func (s *Service) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	rep, err := s.Analyze(ctx)
	if err != nil {
		return stats, err
	}
	s.CleanOrphanObjects(ctx, rep, &stats)
	s.CleanDanglingRows(ctx, rep, &stats)
	s.CleanUnreferencedFiles(ctx, rep, &stats)
	s.ExpireTemporaryRequests(ctx, &stats)
	s.ExpireUnattachedUploads(ctx, &stats)
	s.log.WithFields(logrus.Fields{
		"objects_deleted":  stats.ObjectsDeleted,
		"rows_deleted":     stats.RowsDeleted,
		"orphans_deleted":  stats.OrphansDeleted,
		"requests_expired": stats.RequestsExpired,
		"uploads_expired":  stats.UploadsExpired,
		"failures":         stats.Failures,
	}).Info("reconciliation pass complete")
	return stats, nil
}

// Start runs a pass immediately, then keeps running passes on a ticker
// until the context is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.Run(ctx); err != nil {
			s.log.WithError(err).Error("reconciliation pass failed")
		}
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Run(ctx); err != nil {
					s.log.WithError(err).Error("reconciliation pass failed")
				}
			}
		}
	}()
	s.log.Info("reconciler started")
}

// Stop waits for an in-flight pass to finish or the context to expire.
func (s *Service) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
