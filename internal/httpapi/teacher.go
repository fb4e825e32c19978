package httpapi

import (
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/p-n-ai/arandu-gateway/internal/adapter"
	"github.com/p-n-ai/arandu-gateway/internal/report"
)

// reportFanout bounds concurrent per-student progress lookups.
const reportFanout = 4

func (s *Server) handleTeacherCourses(w http.ResponseWriter, r *http.Request) {
	sess, ctx := current(r)
	list, err := s.courses.TeacherCourses(ctx, sess.User.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleTeacherStudents(w http.ResponseWriter, r *http.Request) {
	sess, ctx := current(r)
	list, err := s.courses.TeacherStudents(ctx, sess.User.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleTeacherReport(w http.ResponseWriter, r *http.Request) {
	sess, ctx := current(r)

	var (
		owned    []adapter.Course
		students []adapter.UserView
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		owned, err = s.courses.TeacherCourses(gctx, sess.User.ID)
		return err
	})
	g.Go(func() error {
		var err error
		students, err = s.courses.TeacherStudents(gctx, sess.User.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		writeError(w, r, err)
		return
	}

	var (
		mu       sync.Mutex
		progress []adapter.CourseProgress
	)
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(reportFanout)
	for _, st := range students {
		g.Go(func() error {
			list, err := s.courses.UserProgress(gctx, st.ID)
			if err != nil {
				return err
			}
			mu.Lock()
			progress = append(progress, list...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		writeError(w, r, err)
		return
	}

	data, err := report.StudentProgressWorkbook(owned, progress, students)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeWorkbook(w, "reporte-estudiantes.xlsx", data)
}
