package block

import "strconv"

// Default builds the frozen standard block set. Air is always id 0.
func Default() *Set {
	s := NewSet()
	for _, st := range defaultStates() {
		if _, err := s.Register(st); err != nil {
			panic(err)
		}
	}
	s.Freeze()
	return s
}

func solid(name string) *State {
	return &State{Name: "minecraft:" + name, MotionBlocking: true}
}

func defaultStates() []*State {
	states := []*State{
		{Name: "minecraft:air", Air: true},
		{Name: "minecraft:cave_air", Air: true},
		{Name: "minecraft:void_air", Air: true},
		solid("stone"),
		solid("deepslate"),
		solid("dirt"),
		{Name: "minecraft:grass_block", MotionBlocking: true, RandomTicks: true},
		solid("sand"),
		solid("sandstone"),
		solid("gravel"),
		solid("bedrock"),
		solid("snow_block"),
		solid("clay"),
		{Name: "minecraft:oak_log", MotionBlocking: true},
		{Name: "minecraft:oak_leaves", MotionBlocking: true, Leaves: true, RandomTicks: true},
		solid("coal_ore"),
		solid("iron_ore"),
		solid("copper_ore"),
		solid("diamond_ore"),
		solid("deepslate_coal_ore"),
		solid("deepslate_iron_ore"),
		solid("deepslate_copper_ore"),
		solid("deepslate_diamond_ore"),
		solid("cobblestone"),
		solid("oak_planks"),
		{Name: "minecraft:glowstone", MotionBlocking: true, LightEmission: 15},
		{Name: "minecraft:torch", LightEmission: 14},
		{Name: "minecraft:short_grass"},
		{Name: "minecraft:ice", MotionBlocking: true, RandomTicks: true},
	}
	for level := 0; level < 16; level++ {
		props := map[string]string{"level": strconv.Itoa(level)}
		states = append(states,
			&State{Name: "minecraft:water", Properties: props, Fluid: FluidWater},
			&State{Name: "minecraft:lava", Properties: copyProps(props), Fluid: FluidLava, FluidTicks: true, LightEmission: 15},
		)
	}
	return states
}

func copyProps(p map[string]string) map[string]string {
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
