package httpapi

import (
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/p-n-ai/pai-scorm/internal/coursedata"
	"github.com/p-n-ai/pai-scorm/internal/report"
	"github.com/p-n-ai/pai-scorm/internal/scorm"
)

type sessionView struct {
	ID          string    `json:"id"`
	CourseID    string    `json:"course_id"`
	CourseTitle string    `json:"course_title"`
	LearnerID   string    `json:"learner_id"`
	Created     time.Time `json:"created"`
	scorm.Snapshot
	Record   coursedata.Record `json:"record"`
	Language string            `json:"language,omitempty"`
}

func (ls *learnerSession) view() sessionView {
	return sessionView{
		ID:          ls.id,
		CourseID:    ls.courseID,
		CourseTitle: ls.course.Title,
		LearnerID:   ls.learnerID,
		Created:     ls.created,
		Snapshot:    ls.session.Snapshot(),
		Record:      ls.cache.Record(),
	}
}

// withSession resolves the {id} path value before calling fn.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(*learnerSession) error) {
	ls, err := s.lookup(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := fn(ls); err != nil {
		s.writeError(w, r, err)
	}
}

func pathIndex(r *http.Request) (int, error) {
	raw := r.PathValue("index")
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequest("index %q is not a non-negative integer", raw)
	}
	return n, nil
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CourseID  string `json:"course_id"`
		LearnerID string `json:"learner_id"`
	}
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.CourseID == "" {
		s.writeError(w, r, badRequest("course_id is required"))
		return
	}

	ls, err := s.open(r.Context(), req.CourseID, req.LearnerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ls.view())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ls *learnerSession) error {
		v := ls.view()
		tag, ok, err := ls.session.LearnerLanguage()
		if err != nil {
			return err
		}
		if ok {
			v.Language = ls.course.MatchLanguage(tag).String()
		}
		writeJSON(w, http.StatusOK, v)
		return nil
	})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := s.Close(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetData(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ls *learnerSession) error {
		writeJSON(w, http.StatusOK, ls.cache.Data())
		return nil
	})
}

func (s *Server) handleGetValue(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ls *learnerSession) error {
		key := r.PathValue("key")
		writeJSON(w, http.StatusOK, map[string]any{
			"key":   key,
			"value": ls.cache.GetValue(key),
		})
		return nil
	})
}

func (s *Server) handleSetValue(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ls *learnerSession) error {
		var req struct {
			Value coursedata.Value `json:"value"`
		}
		if err := readJSON(w, r, &req); err != nil {
			return err
		}
		if err := ls.cache.SetValue(r.PathValue("key"), req.Value); err != nil {
			return err
		}
		writeJSON(w, http.StatusAccepted, ls.cache.Record())
		return nil
	})
}

func (s *Server) handleSetMany(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ls *learnerSession) error {
		body, err := readBody(w, r)
		if err != nil {
			return err
		}
		entries, err := coursedata.ParseDocument(body)
		if err != nil {
			return err
		}
		if err := ls.cache.SetMany(r.Context(), entries); err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, ls.cache.Record())
		return nil
	})
}

func (s *Server) handlePersist(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ls *learnerSession) error {
		if err := ls.cache.Persist(r.Context(), coursedata.ReasonManual); err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, ls.cache.Record())
		return nil
	})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ls *learnerSession) error {
		if err := ls.cache.Restore(r.Context()); err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, ls.cache.Data())
		return nil
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ls *learnerSession) error {
		ls.cache.Reset()
		w.WriteHeader(http.StatusNoContent)
		return nil
	})
}

func (s *Server) handleSetLocation(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ls *learnerSession) error {
		var req struct {
			Location *int `json:"location"`
		}
		if err := readJSON(w, r, &req); err != nil {
			return err
		}
		if req.Location == nil {
			return badRequest("location is required")
		}
		if err := ls.session.SetLocation(r.Context(), *req.Location); err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, ls.view())
		return nil
	})
}

func (s *Server) handleSetScore(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ls *learnerSession) error {
		var req struct {
			Score *float64 `json:"score"`
		}
		if err := readJSON(w, r, &req); err != nil {
			return err
		}
		if req.Score == nil {
			return badRequest("score is required")
		}
		if *req.Score < 0 || *req.Score > 100 {
			return badRequest("score %v is outside 0-100", *req.Score)
		}
		if err := ls.session.SetScore(*req.Score); err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, ls.view())
		return nil
	})
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ls *learnerSession) error {
		if err := ls.session.SetComplete(); err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, ls.view())
		return nil
	})
}

func (s *Server) handleObjective(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ls *learnerSession) error {
		index, err := pathIndex(r)
		if err != nil {
			return err
		}
		var req struct {
			ID       string   `json:"id"`
			Score    *float64 `json:"score"`
			Progress *float64 `json:"progress"`
		}
		if err := readJSON(w, r, &req); err != nil {
			return err
		}
		if req.ID == "" && req.Score == nil && req.Progress == nil {
			return badRequest("one of id, score or progress is required")
		}

		if req.ID != "" {
			if err := ls.session.SetObjectiveID(index, req.ID); err != nil {
				return err
			}
		}
		if req.Score != nil {
			if err := ls.session.SetObjectiveScore(index, *req.Score); err != nil {
				return err
			}
		}
		if req.Progress != nil {
			if err := ls.session.SetObjectiveProgress(index, *req.Progress); err != nil {
				return err
			}
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	})
}

func (s *Server) handleResponse(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ls *learnerSession) error {
		index, err := pathIndex(r)
		if err != nil {
			return err
		}
		var req struct {
			Response string `json:"response"`
		}
		if err := readJSON(w, r, &req); err != nil {
			return err
		}
		it, ok := ls.session.SetResponse(index, req.Response)
		if !ok {
			return fmt.Errorf("%w at index %d", errUnknownInteraction, index)
		}
		writeJSON(w, http.StatusOK, it)
		return nil
	})
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ls *learnerSession) error {
		index, err := pathIndex(r)
		if err != nil {
			return err
		}
		if index >= len(ls.session.Interactions()) {
			return fmt.Errorf("%w at index %d", errUnknownInteraction, index)
		}
		if err := ls.session.RecordTracked(index); err != nil {
			return err
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"index":    index,
			"recorded": ls.session.Connected(),
		})
		return nil
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ls *learnerSession) error {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
			"filename": ls.courseID + "-" + ls.learnerID + ".xlsx",
		}))
		return report.Write(w, report.Input{
			SessionID:   ls.id,
			CourseID:    ls.courseID,
			CourseTitle: ls.course.Title,
			Session:     ls.session.Snapshot(),
			Data:        ls.cache.Data(),
			Record:      ls.cache.Record(),
			GeneratedAt: s.deps.Now(),
		})
	})
}
