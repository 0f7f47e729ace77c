package types

// StageUploadForm 暂存上传的表单字段（文件字段名为 file）.
type StageUploadForm struct {
	Category string `form:"category" rule:"max=100"`
	Local    string `form:"local"    rule:"max=255"`
	Caption  string `form:"caption"  rule:"max=500"`
}

// StageUploadResponse 暂存上传结果.
type StageUploadResponse struct {
	Success  bool   `json:"success"`
	TempID   string `json:"temp_id"`
	Path     string `json:"path"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
	Category string `json:"category"`
	Local    string `json:"local"`
	Caption  string `json:"caption"`
}

// GCResponse 暂存清理结果.
type GCResponse struct {
	Success bool `json:"success"`
	Removed int  `json:"removed"`
}
