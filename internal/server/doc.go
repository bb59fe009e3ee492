// Package server は、ゲストブックのHTTPサーバーを管理します。
//
// このパッケージは、HTTPサーバーの起動、ルーティング、
// テンプレート・静的ファイルの配信、フォーム投稿の受け付けを担当します。
//
// 責務:
//   - HTTPサーバーの起動と管理
//   - リクエストのルーティング (gin)
//   - トップページ・投稿フォーム・一覧ページの配信
//   - 投稿されたメッセージのストアへの追記
//   - /static 以下の静的ファイルの配信
//
// 仕様:
//   - ルートは完全一致 → /static/* → 404 の順に評価する
//   - /static 以下は静的ルートの外を参照できない
//   - テンプレートと静的ファイルは設定されたディレクトリ、
//     未設定ならバイナリに埋め込まれたものを使う
//   - グレースフルシャットダウンに対応
package server
