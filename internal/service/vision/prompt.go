package vision

const promptFR = `Analyse cette image et identifie tous les oiseaux présents.

Pour chaque oiseau détecté, fournis :
1. Nom de l'espèce (commun en français et scientifique)
2. Niveau de confiance : "élevé", "moyen", ou "faible"
3. Brève description des caractéristiques visuelles qui ont aidé à l'identifier
4. Position approximative dans l'image : "gauche"/"centre"/"droite", "haut"/"milieu"/"bas"
5. Boîte englobante "bbox" en pourcentage de l'image (x, y, width, height entre 0 et 100, origine en haut à gauche)

Si aucun oiseau n'est visible, renvoie une liste "birds" vide et "count": 0.

Formate ta réponse en JSON uniquement, sans texte avant ou après :
{
  "birds": [
    {
      "species": "nom de l'espèce en français",
      "scientific_name": "nom scientifique",
      "confidence": "élevé/moyen/faible",
      "description": "caractéristiques visuelles en français",
      "location": "position dans l'image en français",
      "bbox": {"x": 0, "y": 0, "width": 0, "height": 0}
    }
  ],
  "count": nombre_d_oiseaux,
  "timestamp": "heure_actuelle"
}`

const promptEN = `Analyze this image and identify every bird in it.

For each bird, provide:
1. Species name (common English name and scientific name)
2. Confidence level: "high", "medium" or "low"
3. A short description of the visual features that led to the identification
4. Approximate position in the image: "left"/"center"/"right", "top"/"middle"/"bottom"
5. A bounding box "bbox" in percent of the image (x, y, width, height from 0 to 100, origin top-left)

If no bird is visible, return an empty "birds" list and "count": 0.

Answer with JSON only, no text before or after:
{
  "birds": [
    {
      "species": "common name",
      "scientific_name": "scientific name",
      "confidence": "high/medium/low",
      "description": "visual features",
      "location": "position in the image",
      "bbox": {"x": 0, "y": 0, "width": 0, "height": 0}
    }
  ],
  "count": number_of_birds,
  "timestamp": "current_time"
}`

// Prompt returns the instruction sent with every frame. Anything but "en" is French.
func Prompt(language string) string {
	if language == "en" {
		return promptEN
	}
	return promptFR
}
