package store

import "time"

// TimestampLayout はメッセージのキーに使う時刻フォーマット
// 文字列の辞書順が時系列順と一致する
const TimestampLayout = "2006-01-02 15:04:05.000000"

// NewTimestamp は現在時刻からキーを生成する
// 既存のキーと重複する場合は1マイクロ秒ずつ進める
func NewTimestamp(now time.Time, existing Messages) string {
	t := now.Local().Truncate(time.Microsecond)
	for {
		ts := t.Format(TimestampLayout)
		if _, ok := existing[ts]; !ok {
			return ts
		}
		t = t.Add(time.Microsecond)
	}
}
