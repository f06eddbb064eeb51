package model

// AudioStats 是分析阶段得到的结构化音频信息，分析成功后不再变化。
type AudioStats struct {
	DurationSeconds float64 `json:"duration"`
	SampleRateHz    int     `json:"sampleRate"`
	ChannelCount    int     `json:"channels"`
	BitrateKbps     int     `json:"bitrate"`
	Format          string  `json:"format"`
}

// TrackFields 是用户可编辑的元数据
type TrackFields struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Lyrics string `json:"lyrics"`
}

// FileHandle 持有一次上传中的原始文件，归 session 独占。
type FileHandle struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the payload length in bytes.
func (f *FileHandle) Size() int64 {
	if f == nil {
		return 0
	}
	return int64(len(f.Data))
}
