package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey returns the cache key holding a student's active token id
func (r *CacheKeyStruct) UserSessionKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// DraftAnswersKey returns the hash key of a student's autosaved answers
func (r *CacheKeyStruct) DraftAnswersKey(examKey string, userID int) string {
	return fmt.Sprintf("user:%d:exam:%s:answers", userID, examKey)
}

// ExamDocumentKey returns the cache key of a raw exam definition
func (r *CacheKeyStruct) ExamDocumentKey(examKey string) string {
	return fmt.Sprintf("exam:%s:document", examKey)
}

// ExamFormatKey returns the cache key of an exam definition's file format
func (r *CacheKeyStruct) ExamFormatKey(examKey string) string {
	return fmt.Sprintf("exam:%s:format", examKey)
}

// ExamStatsKey returns the key of an exam's aggregated statistics snapshot
func (r *CacheKeyStruct) ExamStatsKey(examKey string) string {
	return fmt.Sprintf("exam:%s:stats", examKey)
}

var CacheKey = NewCacheKeyStruct()
