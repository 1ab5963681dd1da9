// Package server exposes annotation conversion and plate location over HTTP.
package server

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/sensorable/platelbl"
	"github.com/sensorable/platelbl/vision"
)

// Server holds the handlers' shared, read-only dependencies.
type Server struct {
	vocab         *platelbl.Vocabulary
	locator       *vision.Locator
	maxUploadSize int64
}

// New creates a Server.
func New(vocab *platelbl.Vocabulary, locator *vision.Locator, maxUploadSize int64) *Server {
	return &Server{vocab: vocab, locator: locator, maxUploadSize: maxUploadSize}
}

// Router returns the gin engine serving the API.
func (s *Server) Router() *gin.Engine {
	e := gin.New()
	e.Use(gin.Recovery())
	e.MaxMultipartMemory = s.maxUploadSize

	e.GET("/health", s.Health)
	v1 := e.Group("/api").
		Group("/v1")
	v1.POST("/convert", s.Convert)
	v1.POST("/locate", s.Locate)
	return e
}

// Health reports that the service is up.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Convert converts the uploaded VOC document to YOLO label lines.
func (s *Server) Convert(c *gin.Context) {
	data, ok := s.readForm(c)
	if !ok {
		return
	}

	fileData, err := platelbl.ParseVOC(bytes.NewReader(data))
	if err != nil {
		log.Warn().Err(err).Msg("convert: malformed source")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Malformed annotation", "message": err.Error()})
		return
	}

	yoloData, skipped, err := platelbl.ToYOLO(fileData, s.vocab)
	if err != nil {
		log.Warn().Err(err).Msg("convert: malformed source")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Malformed annotation", "message": err.Error()})
		return
	}
	c.Header("X-Skipped-Objects", strconv.Itoa(skipped))
	c.String(http.StatusOK, platelbl.FormatYOLO(yoloData.Annotations))
}

// Bounds is the JSON form of a rectangle.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// LocateResponse is the JSON body returned by Locate.
type LocateResponse struct {
	Found      bool     `json:"found"`
	Bounds     *Bounds  `json:"bounds,omitempty"`
	Quad       [][2]int `json:"quad,omitempty"`
	Candidates int      `json:"candidates"`
}

// Locate runs the plate locator on the uploaded image.
func (s *Server) Locate(c *gin.Context) {
	data, ok := s.readForm(c)
	if !ok {
		return
	}

	img, err := platelbl.DecodeImage(bytes.NewReader(data))
	if err != nil {
		log.Warn().Err(err).Msg("locate: undecodable image")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable image", "message": err.Error()})
		return
	}

	res, err := s.locator.Locate(img)
	if errors.Is(err, vision.ErrUnreadableImage) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable image", "message": err.Error()})
		return
	} else if err != nil {
		log.Err(err).Msg("locate")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to locate", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, newLocateResponse(res))
}

func newLocateResponse(res vision.Result) LocateResponse {
	resp := LocateResponse{Found: res.Found, Candidates: res.Candidates}
	if !res.Found {
		return resp
	}

	b := res.Bounds
	resp.Bounds = &Bounds{X: b.Min.X, Y: b.Min.Y, Width: b.Dx(), Height: b.Dy()}
	resp.Quad = make([][2]int, len(res.Quad))
	for i, p := range res.Quad {
		resp.Quad[i] = [2]int{p.X, p.Y}
	}
	return resp
}

// readForm returns the contents of the multipart form file "file". On failure the error response
// has been written and ok is false.
func (s *Server) readForm(c *gin.Context) (data []byte, ok bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadSize)

	file, err := c.FormFile("file")
	if err != nil {
		log.Err(err).Msg("read file from form")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read form file", "message": err.Error()})
		return nil, false
	}

	data, err = readFormFile(file)
	if err != nil {
		log.Err(err).Msg("open file")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to open form file", "message": err.Error()})
		return nil, false
	}
	return data, true
}

func readFormFile(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
