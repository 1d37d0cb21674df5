package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"dormtrack/internal/attendance"
	"dormtrack/internal/export"
	"dormtrack/internal/roster"
)

type assignRequest struct {
	DormitoryID int64   `json:"dormitoryId" binding:"required"`
	RoomNumber  string  `json:"roomNumber" binding:"required"`
	Job         *string `json:"job"`
}

type roomJobRequest struct {
	RoomNumber *string `json:"roomNumber"`
	Job        *string `json:"job"`
}

type bulkMarkRequest struct {
	Records []attendance.Mark `json:"records" binding:"required,dive"`
}

func (h *Handler) CreateStudent(c *gin.Context) {
	var req roster.CreateStudentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fullName, passport and faculty are required"})
		return
	}
	student, err := h.roster.CreateStudent(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, student)
}

func (h *Handler) ListStudents(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	page, err := h.roster.ListStudents(c.Request.Context(), p, listFilter(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// SearchGlobal looks a student up by passport across every dormitory,
// including students without one. Used before assigning a transfer.
func (h *Handler) SearchGlobal(c *gin.Context) {
	page, err := h.roster.SearchGlobal(c.Request.Context(),
		c.Query("passport"), intQuery(c, "page", 1), intQuery(c, "limit", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) GetStudent(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	student, err := h.roster.GetStudent(c.Request.Context(), p, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, student)
}

func (h *Handler) UpdateStudent(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req roster.UpdateStudentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	student, err := h.roster.UpdateStudent(c.Request.Context(), p, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, student)
}

func (h *Handler) UpdateRoomJob(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req roomJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	student, err := h.roster.UpdateRoomJob(c.Request.Context(), p, id, req.RoomNumber, req.Job)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, student)
}

func (h *Handler) AssignDormitory(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dormitoryId and roomNumber are required"})
		return
	}
	student, err := h.roster.AssignDormitory(c.Request.Context(), p, id, req.DormitoryID, req.RoomNumber, req.Job)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, student)
}

func (h *Handler) UnassignDormitory(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	student, err := h.roster.UnassignDormitory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, student)
}

func (h *Handler) DeleteStudent(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.roster.RemoveStudent(c.Request.Context(), p, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *Handler) TodayAttendance(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	marks, err := h.attendance.Today(c.Request.Context(), p, int64Query(c, "dormitoryId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": marks})
}

func (h *Handler) BulkAttendance(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req bulkMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "records are required"})
		return
	}
	result, err := h.attendance.BulkMark(c.Request.Context(), p, req.Records)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) MonthAttendance(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	view, err := h.attendance.Month(c.Request.Context(), id,
		intQuery(c, "year", 0), intQuery(c, "month", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ExportAttendance streams the student's full history as an xlsx download.
func (h *Handler) ExportAttendance(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	student, records, err := h.attendance.History(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	book, err := export.StudentWorkbook(student, records)
	if err != nil {
		respondError(c, err)
		return
	}
	defer book.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(student)))
	c.Status(http.StatusOK)
	if err := book.Write(c.Writer); err != nil {
		_ = c.Error(err)
	}
}

func (h *Handler) Statistics(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	stats, err := h.attendance.Statistics(c.Request.Context(), p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
