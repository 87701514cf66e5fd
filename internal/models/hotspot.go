package models

// Hotspot - агрегированный кластер точек инцидентов для карты
type Hotspot struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Count int     `json:"count"`
}
