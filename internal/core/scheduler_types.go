package core

import sch "hiveboard/internal/services/scheduler"

// Re-export scheduler types for the plugin SDK (plugins don't import
// internal/services/scheduler directly).
type Snapshot = sch.Snapshot
type ScheduleInfo = sch.ScheduleInfo
type HistoryItem = sch.HistoryItem
