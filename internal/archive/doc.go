// Package archive 把失败的 attempt 持久化到关系数据库，用于事后排查。
//
// Archive 实现 events.Sink，只关心 PartialJSONReceived、
// ResponseFinalized 与 ResponseGenerationFailed 三类事件。
package archive
