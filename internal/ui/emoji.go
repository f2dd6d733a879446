package ui

// emojiPalette is the quick-pick set offered next to the compose field.
var emojiPalette = []string{
	"👍", "❤️", "😂", "😮", "😢", "😡", "💯", "🙏", "✨", "🔥",
	"🤩", "🥳", "😎", "😴", "👋", "🎉", "🥲", "🤣", "😭",
}
