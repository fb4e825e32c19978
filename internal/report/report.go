// Package report renders teacher-facing XLSX exports.
package report

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/arandu-gateway/internal/adapter"
	"github.com/p-n-ai/arandu-gateway/internal/aicontent"
)

// Sheet names.
const (
	SheetCourses    = "Cursos"
	SheetStudents   = "Estudiantes"
	SheetPlan       = "Plan de clase"
	SheetObjectives = "Objetivos"
)

// ContentType is the MIME type of the produced workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const lastAccessLayout = "2006-01-02 15:04"

// StudentProgressWorkbook lists a teacher's courses and, per student, their
// progress on each of those courses. Students without progress get one row
// with zero progress.
func StudentProgressWorkbook(courses []adapter.Course, progress []adapter.CourseProgress, students []adapter.UserView) ([]byte, error) {
	w, err := newWorkbook(SheetCourses)
	if err != nil {
		return nil, err
	}
	defer w.f.Close()

	w.header(SheetCourses, "Curso", "Categoría", "Nivel", "Módulos", "Duración (min)", "Estudiantes")
	titles := make(map[string]string, len(courses))
	for _, c := range courses {
		titles[c.ID] = c.Title
		w.row(SheetCourses, c.Title, c.Category, string(c.Level), len(c.Modules), c.Duration, c.StudentsCount)
	}
	w.widths(SheetCourses, 18)

	if _, err := w.f.NewSheet(SheetStudents); err != nil {
		return nil, fmt.Errorf("add sheet: %w", err)
	}
	w.header(SheetStudents, "Nombre", "Email", "Curso", "Progreso (%)", "Módulos completados", "Último acceso")

	byUser := make(map[string][]adapter.CourseProgress)
	for _, p := range progress {
		if _, ok := titles[p.CourseID]; ok {
			byUser[p.UserID] = append(byUser[p.UserID], p)
		}
	}
	for _, s := range students {
		rows := byUser[s.ID]
		if len(rows) == 0 {
			w.row(SheetStudents, s.Name, s.Email, "-", 0, "0/0", "-")
			continue
		}
		for _, p := range rows {
			w.row(SheetStudents, s.Name, s.Email, titles[p.CourseID], p.ProgressPercentage,
				fmt.Sprintf("%d/%d", p.CompletedModulesCount, p.TotalModules),
				p.LastAccessed.Format(lastAccessLayout))
		}
	}
	w.widths(SheetStudents, 22)

	return w.bytes()
}

// LessonPlanWorkbook renders a lesson plan: one row per step, a totals row,
// and a second sheet with objectives and materials.
func LessonPlanWorkbook(plan aicontent.LessonPlan) ([]byte, error) {
	w, err := newWorkbook(SheetPlan)
	if err != nil {
		return nil, err
	}
	defer w.f.Close()

	w.row(SheetPlan, plan.Title)
	w.header(SheetPlan, "Paso", "Título", "Duración (min)", "Asignación de tiempo", "Contenido",
		"Actividad del estudiante", "Materiales", "Indicador de éxito")
	for _, s := range plan.Steps {
		w.row(SheetPlan, s.StepNumber, s.Title, s.Duration, s.TimeAllocation, s.Content,
			s.StudentActivity, strings.Join(s.MaterialsNeeded, ", "), s.SuccessIndicator)
	}
	w.row(SheetPlan, "Total", fmt.Sprintf("%d pasos", plan.TotalSteps), plan.TotalDuration)
	w.widths(SheetPlan, 24)

	if _, err := w.f.NewSheet(SheetObjectives); err != nil {
		return nil, fmt.Errorf("add sheet: %w", err)
	}
	w.header(SheetObjectives, "Objetivos de aprendizaje")
	for _, o := range plan.LearningObjectives {
		w.row(SheetObjectives, o)
	}
	w.row(SheetObjectives)
	w.header(SheetObjectives, "Materiales necesarios")
	for _, m := range plan.MaterialsNeeded {
		w.row(SheetObjectives, m)
	}
	w.widths(SheetObjectives, 60)

	return w.bytes()
}

// workbook tracks the next free row per sheet and keeps the first write error.
type workbook struct {
	f    *excelize.File
	next map[string]int
	bold int
	err  error
}

func newWorkbook(first string) (*workbook, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), first); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create style: %w", err)
	}
	return &workbook{f: f, next: map[string]int{}, bold: bold}, nil
}

func (w *workbook) row(sheet string, values ...any) int {
	n := w.next[sheet] + 1
	w.next[sheet] = n
	if w.err != nil || len(values) == 0 {
		return n
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err == nil {
		err = w.f.SetSheetRow(sheet, cell, &values)
	}
	if err != nil {
		w.err = fmt.Errorf("write %s row %d: %w", sheet, n, err)
	}
	return n
}

func (w *workbook) header(sheet string, titles ...string) {
	values := make([]any, len(titles))
	for i, t := range titles {
		values[i] = t
	}
	n := w.row(sheet, values...)
	if w.err != nil {
		return
	}
	first, _ := excelize.CoordinatesToCellName(1, n)
	last, _ := excelize.CoordinatesToCellName(len(titles), n)
	if err := w.f.SetCellStyle(sheet, first, last, w.bold); err != nil {
		w.err = fmt.Errorf("style %s header: %w", sheet, err)
	}
}

func (w *workbook) widths(sheet string, width float64) {
	if w.err != nil {
		return
	}
	if err := w.f.SetColWidth(sheet, "A", "H", width); err != nil {
		w.err = fmt.Errorf("size %s columns: %w", sheet, err)
	}
}

func (w *workbook) bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	w.f.SetActiveSheet(0)
	buf, err := w.f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
