package protocol

import "slices"

// knownCommands are the command types the editor bridge plugin dispatches.
var knownCommands = []string{
	"ping",
	"get_actors_in_level",
	"find_actors_by_name",
	"spawn_actor",
	"delete_actor",
	"set_actor_transform",
	"get_unreal_engine_path",
	"get_unreal_project_path",
	"editor_console_command",
	"editor_project_info",
	"editor_get_map_info",
	"editor_search_assets",
	"editor_validate_assets",
	"editor_take_screenshot",
	"editor_move_camera",
}

// KnownCommands returns a copy of the command types the bridge plugin
// handles.
func KnownCommands() []string {
	return slices.Clone(knownCommands)
}

// IsKnownCommand reports whether kind is one the bridge plugin handles.
// Other kinds are still sent; the peer answers them with a remote error.
func IsKnownCommand(kind string) bool {
	return slices.Contains(knownCommands, kind)
}
